package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("first reservation wins", func(t *testing.T) {
		store, _ := newTestStore(t)

		ok, err := store.Reserve(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "second reservation of a live key must fail")
	})

	t.Run("expired claim can be reserved again", func(t *testing.T) {
		store, clock := newTestStore(t)

		ok, err := store.Reserve(ctx, "key-2", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(time.Minute)

		ok, err = store.Reserve(ctx, "key-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("concurrent reservations admit exactly one", func(t *testing.T) {
		store, _ := newTestStore(t)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Reserve(ctx, "contended", time.Hour)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestInMemoryIdempotencyStore_CompleteAndResult(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, ok, err := store.Result(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	reserved, err := store.Reserve(ctx, "pay-1", time.Hour)
	require.NoError(t, err)
	require.True(t, reserved)

	_, ok, err = store.Result(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, ok, "pending key has no result")

	payload := []byte(`{"amount":"10.00"}`)
	require.NoError(t, store.Complete(ctx, "pay-1", payload, time.Hour))
	payload[0] = 'x'

	got, ok, err := store.Result(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"amount":"10.00"}`, string(got))

	reserved, err = store.Reserve(ctx, "pay-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved, "completed key stays claimed")

	clock.Advance(2 * time.Hour)
	_, ok, err = store.Result(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, ok, "expired result is not replayed")
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Reserve(ctx, "pay-2", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "pay-2"))

	ok, err := store.Reserve(ctx, "pay-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, err := store.Reserve(ctx, "short", time.Minute)
	require.NoError(t, err)
	_, err = store.Reserve(ctx, "long", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Size())

	clock.Advance(10 * time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
