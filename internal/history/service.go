package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/autosearch"
)

var _ autosearch.Recorder = (*Service)(nil)

// Service provides run history storage.
type Service struct {
	db      *sql.DB
	queries *queries
	logger  zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		queries: newQueries(db),
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// RecordRun stores a finished run and one row per title action. Titles
// that ended without a decision get a single row carrying their state.
func (s *Service) RecordRun(ctx context.Context, summary *autosearch.RunSummary) error {
	if summary == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.withTx(tx)
	if err := q.insertRun(ctx, runFromSummary(summary)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := 0
	for i := range summary.Titles {
		for _, a := range actionsFromTitle(summary.RunID, &summary.Titles[i]) {
			if err := q.insertAction(ctx, a); err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug().Str("runId", summary.RunID).Int("actions", rows).Msg("Recorded run")
	return nil
}

// List returns a page of runs, newest first, without their actions.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	offset := int64((opts.Page - 1) * opts.PageSize)
	runs, err := s.queries.listRuns(ctx, int64(opts.PageSize), offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	total, err := s.queries.countRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	if runs == nil {
		runs = []*Run{}
	}
	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      runs,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// Get returns one run with its actions.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	run, err := s.queries.getRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Actions, err = s.queries.listActions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return run, nil
}

// Prune keeps the keep most recent runs and deletes the rest.
func (s *Service) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	n, err := s.queries.pruneRuns(ctx, int64(keep))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Int("kept", keep).Msg("Pruned run history")
	}
	return n, nil
}

// DeleteAll removes every stored run.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.queries.deleteAllRuns(ctx)
}

func runFromSummary(summary *autosearch.RunSummary) *Run {
	return &Run{
		ID:         summary.RunID,
		Trigger:    string(summary.Trigger),
		DryRun:     summary.DryRun,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		DurationMs: summary.Duration.Milliseconds(),
		Added:      summary.Added,
		Upgraded:   summary.Upgraded,
		Planned:    summary.Planned,
		Processed:  summary.Processed,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		CapReached: summary.CapReached,
		Cancelled:  summary.Cancelled,
		Error:      summary.Error,
	}
}

func actionsFromTitle(runID string, t *autosearch.TitleResult) []*Action {
	base := Action{
		RunID:               runID,
		ExternalID:          t.Item.ExternalID,
		MediaType:           string(t.Item.MediaType),
		MediaTitle:          t.Item.Title,
		MediaYear:           t.Item.Year,
		State:               string(t.State),
		AvailabilityAssumed: t.AvailabilityAssumed,
		Reason:              t.Reason,
		Error:               t.Error,
	}
	if len(t.Actions) == 0 {
		return []*Action{&base}
	}

	out := make([]*Action, 0, len(t.Actions))
	for _, ar := range t.Actions {
		a := base
		a.Action = string(ar.Action)
		a.Release = ar.Release
		a.Hash = ar.Hash
		a.SizeBytes = ar.SizeBytes
		a.Score = ar.Score
		a.TorrentID = ar.TorrentID
		a.ReplacedID = ar.ReplacedID
		a.DryRun = ar.DryRun
		if ar.Reason != "" {
			a.Reason = ar.Reason
		}
		a.Error = ar.Error
		out = append(out, &a)
	}
	return out
}
