package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"websites-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisCounterStore_ConsumeStopsAtLimitPlusOne(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.1")

	for i := int64(1); i <= 2; i++ {
		v, err := s.Consume(ctx, key, time.Second, 2)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	for i := 0; i < 3; i++ {
		v, err := s.Consume(ctx, key, time.Second, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	}

	got, err := mr.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestRedisCounterStore_ConcurrentConsume(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.9")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		maxSeen  int64
	)
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			v, err := s.Consume(ctx, key, time.Minute, 5)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if v <= 5 {
				admitted++
			}
			if v > maxSeen {
				maxSeen = v
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, admitted)
	assert.Equal(t, int64(6), maxSeen)
	got, err := mr.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestRedisCounterStore_KeyLayout(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()

	bucket := domain.RouteBucket("yiff.rest", "/furry/hug")
	_, err := s.Consume(ctx, domain.RouteKey("yiffy2", bucket, "1.2.3.4"), time.Second, 5)
	require.NoError(t, err)

	assert.True(t, mr.Exists("rl:yiffy2:route:"+bucket+":1.2.3.4"))
}

func TestRedisCounterStore_ExpirySetOnceAtCreation(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.2")

	_, err := s.Consume(ctx, key, 2*time.Second, 5)
	require.NoError(t, err)
	mr.FastForward(500 * time.Millisecond)
	_, err = s.Consume(ctx, key, 2*time.Second, 5)
	require.NoError(t, err)

	ttl, err := s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ttl)

	mr.FastForward(2 * time.Second)
	_, ok, err := s.Count(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Consume(ctx, key, 2*time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "a fresh window starts from zero")
}

func TestRedisCounterStore_TTLSentinels(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.3")

	ttl, err := s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.TTLMissing, ttl)

	require.NoError(t, mr.Set(key.String(), "1"))
	ttl, err = s.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.TTLNoExpiry, ttl)
}

func TestRedisCounterStore_RepairExpiry(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.4")

	require.NoError(t, mr.Set(key.String(), "3"))

	eff, elapsed, err := s.RepairExpiry(ctx, key, domain.TTLNoExpiry, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, eff)
	assert.Equal(t, time.Duration(0), elapsed)
	assert.Equal(t, time.Second, mr.TTL(key.String()))

	got, err := mr.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "3", got, "repair must not reset the count")

	ttl, err := s.TTL(ctx, key)
	require.NoError(t, err)
	eff1, el1, err := s.RepairExpiry(ctx, key, ttl, time.Second)
	require.NoError(t, err)
	eff2, el2, err := s.RepairExpiry(ctx, key, ttl, time.Second)
	require.NoError(t, err)
	assert.Equal(t, eff1, eff2)
	assert.Equal(t, el1, el2)
	assert.Equal(t, ttl, eff1)
}

func TestRedisCounterStore_ConsumeHealsCounterWithoutExpiry(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.RouteKey("test", domain.RouteBucket("a", "/b"), "10.0.0.5")

	// contador persistido sem TTL: sem reparo seria lockout permanente
	require.NoError(t, mr.Set(key.String(), "5"))

	v, err := s.Consume(ctx, key, 3*time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)
	assert.Equal(t, 3*time.Second, mr.TTL(key.String()))

	mr.FastForward(4 * time.Second)
	v, err = s.Consume(ctx, key, 3*time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRedisCounterStore_Restore(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	ctx := context.Background()
	key := domain.GlobalKey("test", "10.0.0.6")

	_, err := s.Consume(ctx, key, time.Second, 5)
	require.NoError(t, err)
	v, err := s.Consume(ctx, key, time.Second, 5)
	require.NoError(t, err)

	require.NoError(t, s.Restore(ctx, key))
	again, err := s.Consume(ctx, key, time.Second, 5)
	require.NoError(t, err)
	assert.Equal(t, v, again)

	missing := domain.GlobalKey("test", "10.0.0.7")
	require.NoError(t, s.Restore(ctx, missing))
	assert.False(t, mr.Exists(missing.String()), "restore must not create a counter")
}

func TestRedisCounterStore_BackendUnavailable(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisCounterStore(client)
	mr.Close()

	_, err := s.Consume(context.Background(), domain.GlobalKey("test", "10.0.0.8"), time.Second, 5)
	assert.Error(t, err)
}
