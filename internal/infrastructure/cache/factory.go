package cache

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

type storeOptions struct {
	log      *zap.Logger
	fallback bool
}

// StoreOption tunes OpenIdempotencyStore.
type StoreOption func(*storeOptions)

// WithLogger reports which store was chosen.
func WithLogger(log *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.log = log }
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// process-local store. Production deployments turn this off so that payment
// replays are always answered consistently across API instances.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) { o.fallback = allow }
}

// OpenIdempotencyStore picks the store that guards payment allocation
// against duplicate submission. Redis is used when enabled and reachable.
func OpenIdempotencyStore(ctx context.Context, cfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{log: zap.NewNop(), fallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.log.Info("Redis disabled, payment idempotency keys are kept in memory")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	switch {
	case err == nil:
		o.log.Info("Payment idempotency keys stored in Redis", zap.String("addr", cfg.Addr()))
		return store, nil
	case !o.fallback:
		return nil, fmt.Errorf("idempotency store: %w", err)
	default:
		o.log.Warn("Redis unreachable, payment idempotency keys fall back to memory",
			zap.String("addr", cfg.Addr()), zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil
	}
}
