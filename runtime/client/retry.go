package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool // ±25% of the delay
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// RetryOption customizes Retry.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum retry attempts
func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryConfig) { c.MaxAttempts = n }
}

// WithInitialDelay sets the initial retry delay
func WithInitialDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.InitialDelay = d }
}

// WithMaxDelay sets the maximum retry delay
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.MaxDelay = d }
}

// WithBackoffFactor sets the exponential backoff factor
func WithBackoffFactor(f float64) RetryOption {
	return func(c *RetryConfig) { c.BackoffFactor = f }
}

// WithoutJitter makes the delays deterministic.
func WithoutJitter() RetryOption {
	return func(c *RetryConfig) { c.Jitter = false }
}

// Retry runs fn until it succeeds, fails with anything other than
// ErrTransactionConflict, or runs out of attempts. The client itself never
// retries; wrap a whole transaction in Retry to replay it after a
// serialization failure or deadlock.
func Retry(ctx context.Context, fn func() error, opts ...RetryOption) error {
	config := DefaultRetryConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrTransactionConflict) {
			return err
		}
		lastErr = err
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.Jitter && delay > 0 {
			jitter := delay / 4
			wait = delay - jitter + time.Duration(rand.Int64N(int64(jitter)*2+1))
		}
		logger.Debug("Retrying after conflict", "attempt", attempt, "delay", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("retry exhausted after %d attempts: %w", config.MaxAttempts, lastErr)
}

// RetryWithResult is Retry for functions that produce a value.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...RetryOption) (T, error) {
	var result T
	err := Retry(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
