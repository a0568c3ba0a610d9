package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// RetryPolicy bounds how often an operation is re-run after a concurrency
// conflict. The whole transaction is re-executed each time.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy returns the default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    50 * time.Millisecond,
	}
}

// withRetry runs fn, re-running it with linear backoff while it fails with
// ErrConcurrencyConflict. Other errors are returned immediately.
func withRetry(ctx context.Context, policy RetryPolicy, metrics Metrics, logger *zap.Logger, operation string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordConflict(ctx, operation)
			logger.Warn("Retrying after concurrency conflict",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Backoff * time.Duration(attempt)):
			}
		}
		err = fn()
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}
