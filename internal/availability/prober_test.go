package availability

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

	"github.com/cachegrab/cachegrab/internal/debrid/mock"
	"github.com/cachegrab/cachegrab/internal/provider"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func makeHashes(n int) []string {
	hashes := make([]string, n)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("%040x", i+1)
	}
	return hashes
}

func newTestProber(checker Checker) (*Prober, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	p := NewProber(checker, DefaultConfig(), zerolog.Nop())
	p.SetSleep(sleeper.sleep)
	return p, sleeper
}

func TestProber_BatchesWithRateLimitRetry(t *testing.T) {
	hashes := makeHashes(120)
	client := mock.New()
	client.SetCached(hashes[3], hashes[75], hashes[110])
	client.FailNext(mock.OpInstantAvailability, provider.FromStatus("realdebrid", "instantAvailability", http.StatusTooManyRequests, ""))

	p, sleeper := newTestProber(client)
	result := p.Probe(context.Background(), hashes)

	// First batch twice (rate limited once), then batches two and three.
	calls := client.Calls()
	require.Len(t, calls, 4)
	assert.Len(t, calls[0].Args, 50)
	assert.Equal(t, calls[0].Args, calls[1].Args)
	assert.Len(t, calls[2].Args, 50)
	assert.Len(t, calls[3].Args, 20)

	// Backoff before the retry, fixed delay between batches, nothing after the last.
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, time.Second}, sleeper.waits)
	assert.GreaterOrEqual(t, sleeper.waits[0], 2*time.Second)

	assert.Len(t, result, 120)
	assert.True(t, result[hashes[3]])
	assert.True(t, result[hashes[75]])
	assert.True(t, result[hashes[110]])
	assert.False(t, result[hashes[0]])
}

func TestProber_ExhaustedRetriesSkipBatch(t *testing.T) {
	hashes := makeHashes(60)
	client := mock.New()
	client.SetCached(hashes[55])
	rateLimited := provider.FromStatus("realdebrid", "instantAvailability", http.StatusTooManyRequests, "")
	client.FailNext(mock.OpInstantAvailability, rateLimited, rateLimited, rateLimited, rateLimited)

	p, sleeper := newTestProber(client)
	result := p.Probe(context.Background(), hashes)

	assert.Equal(t, 5, client.CallCount(mock.OpInstantAvailability))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, time.Second}, sleeper.waits)
	assert.Len(t, result, 10, "only the second batch is known")
	assert.True(t, result[hashes[55]])
}

func TestProber_BlockedReturnsEmpty(t *testing.T) {
	hashes := makeHashes(120)
	client := mock.New()
	client.SetCached(hashes...)
	client.FailNext(mock.OpInstantAvailability, nil, provider.FromStatus("realdebrid", "instantAvailability", http.StatusForbidden, ""))

	p, _ := newTestProber(client)
	result := p.Probe(context.Background(), hashes)

	assert.Empty(t, result)
	assert.Equal(t, 2, client.CallCount(mock.OpInstantAvailability), "no batches after a block")
}

func TestProber_OtherErrorsSkipBatch(t *testing.T) {
	hashes := makeHashes(100)
	client := mock.New()
	client.SetCached(hashes[0], hashes[99])
	client.FailNext(mock.OpInstantAvailability, errors.New("connection reset"))

	p, sleeper := newTestProber(client)
	result := p.Probe(context.Background(), hashes)

	assert.Equal(t, 2, client.CallCount(mock.OpInstantAvailability))
	assert.Equal(t, []time.Duration{time.Second}, sleeper.waits)
	assert.Len(t, result, 50)
	assert.False(t, result[hashes[0]])
	assert.True(t, result[hashes[99]])
}

func TestProber_EmptyInput(t *testing.T) {
	client := mock.New()
	p, _ := newTestProber(client)

	assert.Empty(t, p.Probe(context.Background(), nil))
	assert.Zero(t, client.CallCount(mock.OpInstantAvailability))
}

func TestProber_CancelledContextStops(t *testing.T) {
	hashes := makeHashes(120)
	client := mock.New()
	p := NewProber(client, DefaultConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	result := p.Probe(ctx, hashes)
	assert.Len(t, result, 50)
	assert.Equal(t, 1, client.CallCount(mock.OpInstantAvailability))
}
