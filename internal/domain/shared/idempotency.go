package shared

import (
	"context"
	"time"
)

// IdempotencyStore guards client-supplied idempotency keys so a retried
// request replays the first result instead of writing twice.
type IdempotencyStore interface {
	// Reserve claims key for ttl. Returns false if the key is already claimed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the serialized result for a claimed key.
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// Result returns the stored result. ok is false while the key is still
	// pending or when it was never claimed.
	Result(ctx context.Context, key string) (result []byte, ok bool, err error)

	// Release drops a claim so the request can be retried after a failure.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a key and its stored result are kept
	TTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
