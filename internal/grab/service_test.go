package grab

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/debrid/mock"
	"github.com/cachegrab/cachegrab/internal/decisioning"
	"github.com/cachegrab/cachegrab/internal/provider"
	"github.com/cachegrab/cachegrab/internal/release"
	"github.com/cachegrab/cachegrab/internal/retry"
)

const (
	newHash = "1111111111111111111111111111111111111111"
	oldHash = "2222222222222222222222222222222222222222"
)

func newTestService(p debrid.Provider) (*Service, *[]time.Duration) {
	var waits []time.Duration
	cfg := retry.DefaultConfig()
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return NewService(p, cfg, zerolog.Nop()), &waits
}

func rateLimited(op string) error {
	return provider.FromStatus("realdebrid", op, http.StatusTooManyRequests, "")
}

func newCandidate() release.Candidate {
	return release.Candidate{Title: "Arrival.2016.2160p.BluRay.x265", SizeBytes: 40 << 30, Hash: newHash, Available: true}
}

func existingItem() *debrid.CommittedItem {
	return &debrid.CommittedItem{ID: "OLD", Filename: "Arrival.2016.1080p.BluRay.x264.mkv", SizeBytes: 8 << 30, Hash: oldHash}
}

func TestService_AddCommitsAndSelectsFiles(t *testing.T) {
	client := mock.New()
	svc, _ := newTestService(client)

	result, err := svc.Add(context.Background(), Request{Candidate: newCandidate()})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "MOCK1", result.TorrentID)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, mock.Call{Op: mock.OpAddMagnet, Args: []string{newHash}}, calls[0])
	assert.Equal(t, mock.Call{Op: mock.OpSelectFiles, Args: []string{"MOCK1", "all"}}, calls[1])
}

func TestService_AddRetriesRateLimit(t *testing.T) {
	client := mock.New()
	client.FailNext(mock.OpAddMagnet, rateLimited("addMagnet"), rateLimited("addMagnet"))
	svc, waits := newTestService(client)

	result, err := svc.Add(context.Background(), Request{Candidate: newCandidate()})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, client.CallCount(mock.OpAddMagnet))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *waits)
}

func TestService_AddPermanentFailureNotRetried(t *testing.T) {
	client := mock.New()
	client.FailNext(mock.OpAddMagnet, provider.FromStatus("realdebrid", "addMagnet", http.StatusBadRequest, "invalid magnet"))
	svc, waits := newTestService(client)

	result, err := svc.Add(context.Background(), Request{Candidate: newCandidate()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.ErrorIs(t, err, provider.ErrUpstream)
	assert.False(t, result.Success)
	assert.Equal(t, 1, client.CallCount(mock.OpAddMagnet))
	assert.Empty(t, *waits)
}

func TestService_SelectFilesFailureRemovesTorrent(t *testing.T) {
	client := mock.New()
	client.FailNext(mock.OpSelectFiles, errors.New("boom"))
	svc, _ := newTestService(client)

	_, err := svc.Add(context.Background(), Request{Candidate: newCandidate()})
	require.ErrorIs(t, err, ErrCommitFailed)
	assert.Equal(t, 1, client.CallCount(mock.OpDelete))
	assert.Empty(t, client.Torrents())
}

func TestService_UpgradeCommitsBeforeDeleting(t *testing.T) {
	client := mock.New()
	client.AddExisting(*existingItem())
	svc, _ := newTestService(client)

	result, err := svc.Upgrade(context.Background(), Request{Candidate: newCandidate(), Existing: existingItem()})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "OLD", result.ReplacedID)
	assert.False(t, result.DeleteFailed)

	ops := make([]string, 0, 3)
	for _, c := range client.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{mock.OpAddMagnet, mock.OpSelectFiles, mock.OpDelete}, ops)

	torrents := client.Torrents()
	require.Len(t, torrents, 1)
	assert.Equal(t, newHash, torrents[0].Hash)
}

func TestService_UpgradeFailedCommitKeepsOld(t *testing.T) {
	client := mock.New()
	client.AddExisting(*existingItem())
	client.FailNext(mock.OpAddMagnet, errors.New("rejected"))
	svc, _ := newTestService(client)

	result, err := svc.Upgrade(context.Background(), Request{Candidate: newCandidate(), Existing: existingItem()})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, client.CallCount(mock.OpDelete))
	assert.Len(t, client.Torrents(), 1)
}

func TestService_UpgradeFailedDeleteStillCounts(t *testing.T) {
	client := mock.New()
	client.AddExisting(*existingItem())
	client.FailNext(mock.OpDelete, errors.New("gone"))
	svc, _ := newTestService(client)

	result, err := svc.Upgrade(context.Background(), Request{Candidate: newCandidate(), Existing: existingItem()})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.DeleteFailed)
}

func TestService_UpgradeRequiresExisting(t *testing.T) {
	svc, _ := newTestService(mock.New())
	_, err := svc.Upgrade(context.Background(), Request{Candidate: newCandidate()})
	assert.ErrorIs(t, err, ErrNoExisting)
}

func TestService_DryRunNeverMutates(t *testing.T) {
	client := mock.New()
	svc, _ := newTestService(client)
	ctx := context.Background()

	add, err := svc.Execute(ctx, decisioning.Decision{Action: decisioning.ActionAdd, Candidate: newCandidate()}, true)
	require.NoError(t, err)
	assert.True(t, add.DryRun)
	assert.True(t, add.Success)

	up, err := svc.Execute(ctx, decisioning.Decision{Action: decisioning.ActionUpgrade, Candidate: newCandidate(), Existing: existingItem()}, true)
	require.NoError(t, err)
	assert.True(t, up.DryRun)
	assert.Equal(t, "OLD", up.ReplacedID)

	assert.Zero(t, client.Mutations())
}

func TestService_ExecuteSkip(t *testing.T) {
	svc, _ := newTestService(mock.New())
	_, err := svc.Execute(context.Background(), decisioning.Decision{Action: decisioning.ActionSkip}, false)
	assert.ErrorIs(t, err, ErrNothingToGrab)
}
