// Package availability probes the cache service for instantly available releases.
package availability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/provider"
	"github.com/cachegrab/cachegrab/internal/retry"
)

// DefaultBatchSize is the number of hashes sent per availability request.
const DefaultBatchSize = 50

// Checker reports cache status for a batch of hashes.
type Checker interface {
	InstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error)
}

// Config controls batching and backoff.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
	Retry      retry.Config
}

// DefaultConfig returns batches of 50 with 1s between requests and
// 2s/4s/8s backoff on rate limits and timeouts.
func DefaultConfig() Config {
	return Config{
		BatchSize:  DefaultBatchSize,
		BatchDelay: time.Second,
		Retry:      retry.DefaultConfig(),
	}
}

// Prober checks availability in batches.
type Prober struct {
	checker Checker
	cfg     Config
	sleep   retry.SleepFunc
	logger  zerolog.Logger
}

// NewProber creates a prober for the given checker.
func NewProber(checker Checker, cfg Config, logger zerolog.Logger) *Prober {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Prober{
		checker: checker,
		cfg:     cfg,
		sleep:   retry.Sleep,
		logger:  logger.With().Str("component", "availability").Logger(),
	}
}

// SetSleep replaces the sleep used between batches and retries.
func (p *Prober) SetSleep(fn retry.SleepFunc) {
	p.sleep = fn
	p.cfg.Retry.Sleep = fn
}

// Probe returns the cache status of each hash it could check. Failed batches
// are skipped. If the cache service refuses the probe outright the result
// is empty, which callers treat as "availability unknown".
func (p *Prober) Probe(ctx context.Context, hashes []string) map[string]bool {
	result := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return result
	}

	batches := chunk(hashes, p.cfg.BatchSize)
	for i, batch := range batches {
		if i > 0 && p.cfg.BatchDelay > 0 {
			if err := p.sleep(ctx, p.cfg.BatchDelay); err != nil {
				return result
			}
		}

		var found map[string]bool
		err := retry.Do(ctx, "instant availability", p.cfg.Retry, func() error {
			var callErr error
			found, callErr = p.checker.InstantAvailability(ctx, batch)
			return callErr
		}, p.logger)

		switch {
		case err == nil:
			for h, ok := range found {
				result[strings.ToLower(h)] = ok
			}
		case provider.IsBlocked(err):
			p.logger.Warn().Err(err).Msg("Availability probe blocked, treating availability as unknown")
			return map[string]bool{}
		case ctx.Err() != nil:
			return result
		default:
			p.logger.Warn().
				Err(err).
				Int("batch", i+1).
				Int("batches", len(batches)).
				Int("hashes", len(batch)).
				Msg("Availability batch failed, skipping")
		}
	}

	p.logger.Debug().
		Int("hashes", len(hashes)).
		Int("checked", len(result)).
		Int("batches", len(batches)).
		Msg("Availability probe complete")

	return result
}

func chunk(hashes []string, size int) [][]string {
	batches := make([][]string, 0, (len(hashes)+size-1)/size)
	for start := 0; start < len(hashes); start += size {
		end := min(start+size, len(hashes))
		batches = append(batches, hashes[start:end])
	}
	return batches
}
