package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"websites-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedMemoryStore() (*MemoryCounterStore, *time.Time) {
	s := NewMemoryCounterStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.timeNow = func() time.Time { return now }
	return s, &now
}

func TestMemoryCounterStore_ConsumeStopsAtLimitPlusOne(t *testing.T) {
	s, _ := newClockedMemoryStore()
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.1")

	for i := int64(1); i <= 3; i++ {
		v, err := s.Consume(ctx, key, time.Second, 3)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	for i := 0; i < 5; i++ {
		v, err := s.Consume(ctx, key, time.Second, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(4), v)
	}

	count, ok, err := s.Count(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), count, "rejected attempts must not inflate the stored count")
}

func TestMemoryCounterStore_RestoreThenConsumeIsNetZero(t *testing.T) {
	s, _ := newClockedMemoryStore()
	ctx := context.Background()
	key := domain.RouteKey("test", domain.RouteBucket("a", "/"), "10.0.0.1")

	_, err := s.Consume(ctx, key, time.Second, 10)
	require.NoError(t, err)
	v, err := s.Consume(ctx, key, time.Second, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	require.NoError(t, s.Restore(ctx, key))
	again, err := s.Consume(ctx, key, time.Second, 10)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestMemoryCounterStore_ExpiredCounterStartsFresh(t *testing.T) {
	s, now := newClockedMemoryStore()
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.2")

	for i := 0; i < 3; i++ {
		_, err := s.Consume(ctx, key, time.Second, 5)
		require.NoError(t, err)
	}

	*now = now.Add(1500 * time.Millisecond)

	_, ok, err := s.Count(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "expired counter must read as absent")
	assert.Equal(t, 0, s.Len(), "lazy expiry deletes the entry on access")

	v, err := s.Consume(ctx, key, time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestMemoryCounterStore_TTL(t *testing.T) {
	s, now := newClockedMemoryStore()
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.3")

	ttl, err := s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.TTLMissing, ttl)

	_, err = s.Consume(ctx, key, 2*time.Second, 5)
	require.NoError(t, err)

	*now = now.Add(500 * time.Millisecond)
	ttl, err = s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ttl)

	// a expiração é fixada na criação; novos consumos não a estendem
	_, err = s.Consume(ctx, key, 2*time.Second, 5)
	require.NoError(t, err)
	ttl, err = s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ttl)
}

func TestMemoryCounterStore_RepairExpiry(t *testing.T) {
	s, _ := newClockedMemoryStore()
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.4")

	s.entries[key.String()] = &counterEntry{count: 4}

	ttl, err := s.TTL(ctx, key)
	require.NoError(t, err)
	require.Equal(t, domain.TTLNoExpiry, ttl)

	eff, elapsed, err := s.RepairExpiry(ctx, key, ttl, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, eff)
	assert.Equal(t, time.Duration(0), elapsed)

	ttl, err = s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, time.Second, ttl)

	count, _, err := s.Count(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count, "repair must not reset the count")

	// idempotente com TTL válido
	eff1, el1, err := s.RepairExpiry(ctx, key, ttl, time.Second)
	require.NoError(t, err)
	eff2, el2, err := s.RepairExpiry(ctx, key, ttl, time.Second)
	require.NoError(t, err)
	assert.Equal(t, eff1, eff2)
	assert.Equal(t, el1, el2)
}

func TestMemoryCounterStore_RestoreMissingKeyIsNoop(t *testing.T) {
	s, _ := newClockedMemoryStore()
	key := domain.GlobalKey("test", "10.0.0.5")

	require.NoError(t, s.Restore(context.Background(), key))
	_, ok, err := s.Count(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCounterStore_ConcurrentConsume(t *testing.T) {
	s := NewMemoryCounterStore()
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.6")

	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Consume(ctx, key, time.Minute, 50)
		}()
	}
	wg.Wait()

	count, _, err := s.Count(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}
