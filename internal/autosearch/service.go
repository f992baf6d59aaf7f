package autosearch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/decisioning"
	"github.com/cachegrab/cachegrab/internal/grab"
	"github.com/cachegrab/cachegrab/internal/quality"
	"github.com/cachegrab/cachegrab/internal/release"
	"github.com/cachegrab/cachegrab/internal/retry"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// TitleSource lists the titles a run works through.
type TitleSource interface {
	Collect(ctx context.Context) ([]catalog.MediaItem, error)
}

// ReleaseIndex finds raw releases for a title.
type ReleaseIndex interface {
	Search(ctx context.Context, externalID string, mediaType catalog.MediaType) ([]release.Raw, error)
}

// AvailabilityProber checks which hashes are cached.
type AvailabilityProber interface {
	Probe(ctx context.Context, hashes []string) map[string]bool
}

// CommittedLister loads the items already held by the cache service.
type CommittedLister interface {
	ListTorrents(ctx context.Context) ([]debrid.CommittedItem, error)
}

// Grabber carries out add and upgrade decisions.
type Grabber interface {
	Execute(ctx context.Context, d decisioning.Decision, dryRun bool) (*grab.Result, error)
}

// HealthReporter receives the outcome of each collaborator call.
type HealthReporter interface {
	Observe(component string, err error)
}

// Collaborator names reported to the HealthReporter.
const (
	ComponentCatalog = "catalog"
	ComponentIndex   = "releaseIndex"
	ComponentCache   = "cacheService"
)

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, summary *RunSummary) error
}

// Service orchestrates pipeline runs.
type Service struct {
	titles    TitleSource
	index     ReleaseIndex
	prober    AvailabilityProber
	committed CommittedLister
	grabber   Grabber
	recorder  Recorder
	health    HealthReporter
	settings  Settings
	scorer    *quality.Scorer
	sleep     retry.SleepFunc
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	last    *RunSummary
}

// NewService creates a new run orchestrator.
func NewService(
	titles TitleSource,
	index ReleaseIndex,
	prober AvailabilityProber,
	committed CommittedLister,
	grabber Grabber,
	settings Settings,
	logger zerolog.Logger,
) *Service {
	return &Service{
		titles:    titles,
		index:     index,
		prober:    prober,
		committed: committed,
		grabber:   grabber,
		settings:  settings,
		scorer:    quality.NewDefaultScorer(settings.Preferences),
		sleep:     retry.Sleep,
		logger:    logger.With().Str("component", "autosearch").Logger(),
	}
}

// SetRecorder sets where finished runs are persisted.
func (s *Service) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// SetHealthReporter sets where collaborator call outcomes are reported.
func (s *Service) SetHealthReporter(health HealthReporter) {
	s.health = health
}

func (s *Service) observe(component string, err error) {
	if s.health != nil {
		s.health.Observe(component, err)
	}
}

// SetSleep replaces the delay function used between searches and commits.
func (s *Service) SetSleep(fn retry.SleepFunc) {
	s.sleep = fn
}

// Settings returns the run settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// IsRunning returns true while a run is in progress.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns the summary of the most recent finished run, if any.
func (s *Service) LastRun() *RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run executes one pipeline run with the configured dry-run setting.
func (s *Service) Run(ctx context.Context, trigger Trigger) (*RunSummary, error) {
	return s.RunWith(ctx, trigger, s.settings.DryRun)
}

// RunWith executes one pipeline run. Per-title failures are recorded and the
// run moves on; only a catalog failure or cancellation ends it early.
// Commitments made before an early end are kept.
func (s *Service) RunWith(ctx context.Context, trigger Trigger, dryRun bool) (*RunSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	summary := &RunSummary{
		RunState:  RunState{RunID: uuid.NewString()},
		Trigger:   trigger,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Titles:    []TitleResult{},
	}
	logger := s.logger.With().Str("runId", summary.RunID).Logger()

	if !s.settings.Enabled {
		logger.Info().Msg("Pipeline disabled, nothing to do")
		return s.finish(ctx, summary, nil)
	}

	logger.Info().Str("trigger", string(trigger)).Bool("dryRun", dryRun).Msg("Starting run")

	items, err := s.titles.Collect(ctx)
	s.observe(ComponentCatalog, err)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to collect titles")
		return s.finish(ctx, summary, fmt.Errorf("collect titles: %w", err))
	}
	logger.Info().Int("titles", len(items)).Msg("Collected titles")

	var snapshot []debrid.CommittedItem
	if s.settings.UpgradeExisting {
		snapshot, err = s.committed.ListTorrents(ctx)
		s.observe(ComponentCache, err)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load committed items, continuing without upgrade matching")
			snapshot = nil
		} else {
			logger.Debug().Int("committed", len(snapshot)).Msg("Loaded committed items")
		}
	}

	r := &runner{
		service:  s,
		summary:  summary,
		dryRun:   dryRun,
		snapshot: snapshot,
		held:     decisioning.HeldHashes(snapshot),
		logger:   logger,
	}

	for i, item := range items {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		if s.settings.capReached(summary.RunState) {
			summary.CapReached = true
			logger.Info().Int("cap", s.settings.MaxTorrentsPerRun).Msg("Run cap reached, stopping")
			break
		}
		if i > 0 && s.settings.SearchDelay > 0 {
			if err := s.sleep(ctx, s.settings.SearchDelay); err != nil {
				summary.Cancelled = true
				break
			}
		}

		summary.Titles = append(summary.Titles, r.processTitle(ctx, item))
	}

	if summary.Cancelled {
		logger.Warn().Msg("Run cancelled, changes made so far are kept")
		return s.finish(ctx, summary, ctx.Err())
	}
	return s.finish(ctx, summary, nil)
}

func (s *Service) finish(ctx context.Context, summary *RunSummary, runErr error) (*RunSummary, error) {
	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	s.logger.Info().
		Str("runId", summary.RunID).
		Int("added", summary.Added).
		Int("upgraded", summary.Upgraded).
		Int("planned", summary.Planned).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Duration).
		Msg("Run completed")

	if s.recorder != nil {
		if err := s.recorder.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			s.logger.Warn().Err(err).Str("runId", summary.RunID).Msg("Failed to record run")
		}
	}

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	return summary, runErr
}

// runner holds the mutable state of one run.
type runner struct {
	service   *Service
	summary   *RunSummary
	dryRun    bool
	snapshot  []debrid.CommittedItem
	held      map[string]struct{}
	committed bool // a commit was attempted earlier in this run
	logger    zerolog.Logger
}

func (r *runner) processTitle(ctx context.Context, item catalog.MediaItem) TitleResult {
	s := r.service
	state := &r.summary.RunState
	state.Processed++

	result := TitleResult{Item: item, State: decisioning.StateSearched}
	logger := r.logger.With().Str("title", item.String()).Logger()

	raws, err := s.index.Search(ctx, item.ExternalID, item.MediaType)
	s.observe(ComponentIndex, err)
	if err != nil {
		logger.Warn().Err(err).Msg("Release search failed")
		return r.fail(result, err)
	}

	candidates := release.Normalize(raws, logger)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return r.skip(result, "no releases found")
	}

	probe := s.prober.Probe(ctx, decisioning.Hashes(candidates))
	result.AvailabilityAssumed = decisioning.Annotate(candidates, probe)
	result.State = decisioning.StateProbed
	if result.AvailabilityAssumed {
		logger.Warn().Int("candidates", len(candidates)).Msg("Availability unknown, assuming every candidate is cached")
	}

	selected := decisioning.Select(candidates, s.settings.Preferences, s.scorer, s.settings.MaxTorrentsPerTitle)
	result.State = decisioning.StateScored
	result.Eligible = len(selected)
	if len(selected) == 0 {
		return r.skip(result, "no release passed the quality filter")
	}

	var existing *debrid.CommittedItem
	if s.settings.UpgradeExisting {
		existing = decisioning.MatchCommitted(item, r.snapshot)
	}

	decisions := decisioning.Plan(selected, existing, r.held, s.scorer)
	result.State = decisioning.StateDecided

	for _, d := range decisions {
		action := ActionResult{
			Action:    d.Action,
			Release:   d.Candidate.Title,
			Hash:      d.Candidate.Hash,
			SizeBytes: d.Candidate.SizeBytes,
			Score:     d.Candidate.Score,
			Reason:    d.Reason,
		}
		if d.Existing != nil {
			action.Replaced = d.Existing.Filename
		}

		if d.Action == decisioning.ActionSkip {
			logger.Info().Str("release", d.Candidate.Title).Str("reason", d.Reason).Msg("Skipping release")
			result.Actions = append(result.Actions, action)
			continue
		}

		if s.settings.capReached(*state) {
			r.summary.CapReached = true
			result.Reason = "run cap reached"
			break
		}
		if r.committed && s.settings.CommitDelay > 0 {
			if err := s.sleep(ctx, s.settings.CommitDelay); err != nil {
				result.Reason = "run cancelled"
				break
			}
		}
		r.committed = true

		res, err := s.grabber.Execute(ctx, d, r.dryRun)
		if !r.dryRun {
			s.observe(ComponentCache, err)
		}
		if res != nil {
			action.TorrentID = res.TorrentID
			action.ReplacedID = res.ReplacedID
			action.DryRun = res.DryRun
			action.DeleteFailed = res.DeleteFailed
		}
		if err != nil {
			logger.Warn().Err(err).Str("release", d.Candidate.Title).Msg("Commit failed")
			action.Error = err.Error()
			result.Actions = append(result.Actions, action)
			continue
		}

		r.recordCommit(d, res, state)
		result.Actions = append(result.Actions, action)
	}

	return r.conclude(result)
}

// recordCommit updates counters and the in-run view of the cache.
func (r *runner) recordCommit(d decisioning.Decision, res *grab.Result, state *RunState) {
	r.held[d.Candidate.Hash] = struct{}{}

	switch {
	case res.DryRun:
		state.Planned++
		return
	case d.Action == decisioning.ActionUpgrade:
		state.Upgraded++
	default:
		state.Added++
	}

	if d.Action == decisioning.ActionUpgrade && d.Existing != nil && !res.DeleteFailed {
		for i := range r.snapshot {
			if r.snapshot[i].ID == d.Existing.ID {
				r.snapshot = append(r.snapshot[:i], r.snapshot[i+1:]...)
				break
			}
		}
	}
	r.snapshot = append(r.snapshot, debrid.CommittedItem{
		ID:        res.TorrentID,
		Filename:  d.Candidate.Title,
		SizeBytes: d.Candidate.SizeBytes,
		Hash:      d.Candidate.Hash,
	})
}

// conclude derives the terminal state of a title from its actions.
func (r *runner) conclude(result TitleResult) TitleResult {
	var upgraded, added, failed bool
	for _, a := range result.Actions {
		switch {
		case !a.Succeeded():
			failed = failed || a.Error != ""
		case a.Action == decisioning.ActionUpgrade:
			upgraded = true
		default:
			added = true
		}
	}

	switch {
	case upgraded:
		result.State = decisioning.StateUpgraded
	case added:
		result.State = decisioning.StateAdded
	case failed:
		result.State = decisioning.StateFailed
		r.summary.Failed++
	default:
		result.State = decisioning.StateSkipped
		r.summary.Skipped++
		if result.Reason == "" && len(result.Actions) > 0 {
			result.Reason = result.Actions[0].Reason
		}
	}
	return result
}

func (r *runner) fail(result TitleResult, err error) TitleResult {
	result.State = decisioning.StateFailed
	result.Error = err.Error()
	r.summary.Failed++
	return result
}

func (r *runner) skip(result TitleResult, reason string) TitleResult {
	result.State = decisioning.StateSkipped
	result.Reason = reason
	r.summary.Skipped++
	r.logger.Info().Str("title", result.Item.String()).Str("reason", reason).Msg("Skipping title")
	return result
}
