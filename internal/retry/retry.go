// Package retry implements bounded retries with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxRetries int           // Retries after the first attempt (total attempts = MaxRetries+1)
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Cap on the backoff delay
	Multiplier float64       // Multiplier for exponential backoff
}

// MarketDataConfig returns the retry configuration for market-data provider calls
// Pattern: 500ms, 1s, 2s
func MarketDataConfig() *Config {
	return &Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// RegistryConfig returns the retry configuration for registry source calls
func RegistryConfig() *Config {
	return &Config{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// Do executes fn with exponential backoff. It stops early on context
// cancellation and on errors the taxonomy marks non-retryable (parse,
// entitlement, rate-limit, validation), surfacing those to the caller
// for classification rather than burning attempts on them.
func Do(ctx context.Context, config *Config, fn Func) error {
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries+1; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !syncerrors.IsRetryable(err) {
			return err
		}
		if attempt > config.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}

		delay := Delay(config, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":    attempt,
			"maxRetries": config.MaxRetries,
			"delay":      delay.String(),
			"error":      err.Error(),
		}).Warn("operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// Delay calculates the backoff delay before the next attempt:
// BaseDelay * Multiplier^(attempt-1), capped at MaxDelay
func Delay(config *Config, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
