package common

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier scales Delay after every failed attempt. Values <= 1 keep the delay fixed.
	Multiplier  float64
	IsRetryable func(error) bool
	Tag         string
}

// Retry runs fn until it succeeds, returns a non-retryable error, the attempts run
// out or ctx is done. The last error is returned wrapped with the attempt count.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.Tag != "" {
			log.Printf("[%s] attempt %d/%d failed: %v (retrying in %s)", p.Tag, attempt, attempts, err, delay)
		}
		if sleepErr := Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// Sleep waits for d or until ctx is done.
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
