// Package retry runs collaborator calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/provider"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures the exponential backoff retry behavior.
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int // retries after the first attempt
	Multiplier   float64

	// ShouldRetry decides whether an error is worth another attempt.
	// Defaults to provider.IsTransient (rate limits and timeouts).
	ShouldRetry func(error) bool
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
}

// DefaultConfig returns the backoff used for cache-service calls:
// up to 3 retries waiting 2s, 4s, 8s.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxRetries:   3,
		Multiplier:   2.0,
	}
}

// Sleep blocks for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes fn, retrying transient failures with exponential backoff.
// Non-retryable errors are returned immediately. The last error is returned
// unwrapped so callers can still match it with errors.Is.
func Do(ctx context.Context, name string, cfg Config, fn func() error, logger zerolog.Logger) error {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = provider.IsTransient
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info().Str("operation", name).Int("retries", attempt).Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		logger.Warn().
			Err(err).
			Str("operation", name).
			Int("retry", attempt+1).
			Int("maxRetries", cfg.MaxRetries).
			Dur("nextRetryIn", delay).
			Msg("Transient error, will retry")

		if err := sleep(ctx, delay); err != nil {
			return err
		}

		next := time.Duration(float64(delay) * multiplier)
		if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
			next = cfg.MaxDelay
		}
		delay = next
	}

	logger.Error().Err(lastErr).Str("operation", name).Int("retries", cfg.MaxRetries).
		Msg("Operation failed after all retries")
	return lastErr
}
