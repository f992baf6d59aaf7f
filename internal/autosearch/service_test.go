package autosearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrab/cachegrab/internal/availability"
	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/debrid/mock"
	"github.com/cachegrab/cachegrab/internal/decisioning"
	"github.com/cachegrab/cachegrab/internal/grab"
	"github.com/cachegrab/cachegrab/internal/provider"
	"github.com/cachegrab/cachegrab/internal/release"
	"github.com/cachegrab/cachegrab/internal/retry"
)

type fakeTitles struct {
	items []catalog.MediaItem
	err   error
}

func (f *fakeTitles) Collect(context.Context) ([]catalog.MediaItem, error) {
	return f.items, f.err
}

type fakeIndex struct {
	releases map[string][]release.Raw
	errs     map[string]error
	searched []string
}

func (f *fakeIndex) Search(_ context.Context, externalID string, _ catalog.MediaType) ([]release.Raw, error) {
	f.searched = append(f.searched, externalID)
	if err := f.errs[externalID]; err != nil {
		return nil, err
	}
	return f.releases[externalID], nil
}

type fakeRecorder struct {
	runs []*RunSummary
}

func (f *fakeRecorder) RecordRun(_ context.Context, summary *RunSummary) error {
	f.runs = append(f.runs, summary)
	return nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func hash(n int) string {
	return fmt.Sprintf("%040x", n)
}

var (
	arrival = catalog.MediaItem{ExternalID: "tt2543164", Title: "Arrival", Year: 2016, MediaType: catalog.MediaTypeMovie}
	dune    = catalog.MediaItem{ExternalID: "tt15239678", Title: "Dune: Part Two", Year: 2024, MediaType: catalog.MediaTypeMovie}
)

type harness struct {
	service  *Service
	client   *mock.Client
	index    *fakeIndex
	sleeper  *recordingSleeper
	recorder *fakeRecorder
}

func defaultSettings() Settings {
	return Settings{
		Enabled:             true,
		UpgradeExisting:     true,
		MaxTorrentsPerRun:   5,
		MaxTorrentsPerTitle: 1,
		SearchDelay:         time.Second,
		CommitDelay:         1500 * time.Millisecond,
	}
}

func newHarness(t *testing.T, items []catalog.MediaItem, settings Settings) *harness {
	t.Helper()
	sleeper := &recordingSleeper{}
	client := mock.New()

	prober := availability.NewProber(client, availability.DefaultConfig(), zerolog.Nop())
	prober.SetSleep(sleeper.sleep)

	retryCfg := retry.DefaultConfig()
	retryCfg.Sleep = sleeper.sleep
	grabber := grab.NewService(client, retryCfg, zerolog.Nop())

	index := &fakeIndex{releases: map[string][]release.Raw{}, errs: map[string]error{}}
	recorder := &fakeRecorder{}

	svc := NewService(&fakeTitles{items: items}, index, prober, client, grabber, settings, zerolog.Nop())
	svc.SetSleep(sleeper.sleep)
	svc.SetRecorder(recorder)

	return &harness{service: svc, client: client, index: index, sleeper: sleeper, recorder: recorder}
}

func TestRun_CapStopsBeforeNextTitle(t *testing.T) {
	settings := defaultSettings()
	settings.MaxTorrentsPerRun = 1
	h := newHarness(t, []catalog.MediaItem{arrival, dune}, settings)
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p.BluRay.x264", Size: "8 GB", InfoHash: hash(1)}}
	h.index.releases[dune.ExternalID] = []release.Raw{{Title: "Dune.Part.Two.2024.2160p.WEB-DL", Size: "20 GB", InfoHash: hash(2)}}
	h.client.SetCached(hash(1), hash(2))

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, h.client.CallCount(mock.OpAddMagnet), "exactly one commitment")
	assert.Equal(t, 1, h.client.CallCount(mock.OpInstantAvailability), "second title is not probed")
	assert.Equal(t, []string{arrival.ExternalID}, h.index.searched)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Processed)
	assert.True(t, summary.CapReached)
	require.Len(t, summary.Titles, 1)
	assert.Equal(t, decisioning.StateAdded, summary.Titles[0].State)
}

func TestRun_DryRunIsIdempotent(t *testing.T) {
	settings := defaultSettings()
	settings.DryRun = true
	h := newHarness(t, []catalog.MediaItem{arrival}, settings)
	h.index.releases[arrival.ExternalID] = []release.Raw{
		{Title: "Arrival.2016.1080p.BluRay.x264", Size: "8 GB", InfoHash: hash(1)},
		{Title: "Arrival.2016.2160p.BluRay.x265", Size: "30 GB", InfoHash: hash(2)},
	}
	h.client.SetCached(hash(1), hash(2))

	first, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	second, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Zero(t, h.client.Mutations())
	for _, summary := range []*RunSummary{first, second} {
		assert.True(t, summary.DryRun)
		assert.Equal(t, 1, summary.Planned)
		assert.Zero(t, summary.Added)
		require.Len(t, summary.Titles, 1)
		require.Len(t, summary.Titles[0].Actions, 1)
	}
	assert.Equal(t, hash(2), first.Titles[0].Actions[0].Hash)
	assert.Equal(t, first.Titles[0].Actions[0].Hash, second.Titles[0].Actions[0].Hash)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_DegradesOpenWhenProbeBlocked(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival}, defaultSettings())
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p.BluRay.x264", Size: "8 GB", InfoHash: hash(1)}}
	h.client.FailNext(mock.OpInstantAvailability, provider.FromStatus("realdebrid", "instantAvailability", http.StatusForbidden, ""))

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	require.Len(t, summary.Titles, 1)
	assert.True(t, summary.Titles[0].AvailabilityAssumed)
	assert.Equal(t, decisioning.StateAdded, summary.Titles[0].State)
	assert.Equal(t, 1, summary.Added)
}

func TestRun_UpgradesMatchedItem(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival}, defaultSettings())
	h.client.AddExisting(debrid.CommittedItem{ID: "OLD", Filename: "Arrival.2016.1080p.BluRay.x264.mkv", SizeBytes: 8 << 30, Hash: hash(9)})
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.2160p.BluRay.x265", Size: "40 GB", InfoHash: hash(2)}}
	h.client.SetCached(hash(2))

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Upgraded)
	assert.Zero(t, summary.Added)
	require.Len(t, summary.Titles[0].Actions, 1)
	assert.Equal(t, "OLD", summary.Titles[0].Actions[0].ReplacedID)

	torrents := h.client.Torrents()
	require.Len(t, torrents, 1)
	assert.Equal(t, hash(2), torrents[0].Hash)
}

func TestRun_SkipsWhenHeldIsBetter(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival}, defaultSettings())
	h.client.AddExisting(debrid.CommittedItem{ID: "OLD", Filename: "Arrival.2016.2160p.REMUX.mkv", SizeBytes: 60 << 30, Hash: hash(9)})
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p.WEB-DL", Size: "6 GB", InfoHash: hash(2)}}
	h.client.SetCached(hash(2))

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, decisioning.StateSkipped, summary.Titles[0].State)
	assert.Zero(t, h.client.Mutations())
}

func TestRun_TitleFailureDoesNotStopRun(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival, dune}, defaultSettings())
	h.index.errs[arrival.ExternalID] = provider.FromStatus("torrentio", "search", http.StatusInternalServerError, "")
	h.index.releases[dune.ExternalID] = []release.Raw{{Title: "Dune.Part.Two.2024.2160p.WEB-DL", Size: "20 GB", InfoHash: hash(2)}}

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, decisioning.StateFailed, summary.Titles[0].State)
	assert.NotEmpty(t, summary.Titles[0].Error)
}

func TestRun_DelaysBetweenSearchesAndCommits(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival, dune}, defaultSettings())
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p", Size: "8 GB", InfoHash: hash(1)}}
	h.index.releases[dune.ExternalID] = []release.Raw{{Title: "Dune.Part.Two.2024.1080p", Size: "9 GB", InfoHash: hash(2)}}

	_, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, h.sleeper.waits)
}

func TestRun_NoReleasesIsSkipped(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival}, defaultSettings())
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival", InfoHash: "not-a-hash"}}

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "no releases found", summary.Titles[0].Reason)
	assert.Zero(t, h.client.CallCount(mock.OpInstantAvailability))
}

func TestRun_CatalogAuthFailureFailsRun(t *testing.T) {
	h := newHarness(t, nil, defaultSettings())
	h.service.titles = &fakeTitles{err: provider.NewAuthError("trakt", "trending", "client id not configured")}

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.Error)
	require.Len(t, h.recorder.runs, 1)
}

func TestRun_Disabled(t *testing.T) {
	settings := defaultSettings()
	settings.Enabled = false
	h := newHarness(t, []catalog.MediaItem{arrival}, settings)

	summary, err := h.service.Run(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Empty(t, summary.Titles)
	assert.Empty(t, h.index.searched)
}

func TestRun_CancelledKeepsCommitments(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival, dune}, defaultSettings())
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p", Size: "8 GB", InfoHash: hash(1)}}
	h.index.releases[dune.ExternalID] = []release.Raw{{Title: "Dune.Part.Two.2024.1080p", Size: "9 GB", InfoHash: hash(2)}}

	ctx, cancel := context.WithCancel(context.Background())
	h.service.SetSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	summary, err := h.service.Run(ctx, TriggerManual)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Added)
	assert.Len(t, h.client.Torrents(), 1)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	h := newHarness(t, nil, defaultSettings())
	h.service.running = true

	_, err := h.service.Run(context.Background(), TriggerAPI)
	assert.True(t, errors.Is(err, ErrRunInProgress))
}

func TestRun_RecordsSummary(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival}, defaultSettings())
	h.index.releases[arrival.ExternalID] = []release.Raw{{Title: "Arrival.2016.1080p", Size: "8 GB", InfoHash: hash(1)}}

	summary, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	require.Len(t, h.recorder.runs, 1)
	assert.Same(t, summary, h.recorder.runs[0])
	assert.Same(t, summary, h.service.LastRun())
	assert.False(t, h.service.IsRunning())
}

type fakeHealth struct {
	observed map[string][]error
}

func (f *fakeHealth) Observe(component string, err error) {
	if f.observed == nil {
		f.observed = map[string][]error{}
	}
	f.observed[component] = append(f.observed[component], err)
}

func TestRun_ReportsCollaboratorHealth(t *testing.T) {
	h := newHarness(t, []catalog.MediaItem{arrival, dune}, defaultSettings())
	health := &fakeHealth{}
	h.service.SetHealthReporter(health)

	indexErr := provider.FromStatus("torrentio", "search", http.StatusBadGateway, "")
	h.index.errs[arrival.ExternalID] = indexErr
	h.index.releases[dune.ExternalID] = []release.Raw{{Title: "Dune.Part.Two.2024.2160p.WEB-DL", Size: "20 GB", InfoHash: hash(2)}}
	h.client.SetCached(hash(2))

	_, err := h.service.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []error{nil}, health.observed[ComponentCatalog])
	require.Len(t, health.observed[ComponentIndex], 2)
	assert.ErrorIs(t, health.observed[ComponentIndex][0], indexErr)
	assert.NoError(t, health.observed[ComponentIndex][1])
	assert.NotEmpty(t, health.observed[ComponentCache])
	for _, err := range health.observed[ComponentCache] {
		assert.NoError(t, err)
	}
}
