package infra

import (
	"context"
	"testing"
	"time"

	"websites-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByScope(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Identity: "10.0.0.1", Allowed: true, Method: "GET", Domain: "yiff.rest", Path: "/a"},
		{Identity: "10.0.0.1", Scope: domain.ScopeRoute, Method: "GET", Domain: "yiff.rest", Path: "/a"},
		{Identity: "10.0.0.2", Scope: domain.ScopeGlobal, Method: "GET", Domain: "yiff.rest", Path: "/b"},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	total := s.Total()
	assert.Equal(t, Counters{Allowed: 1, Denied: 2, DeniedRoute: 1, DeniedGlobal: 1}, total)

	routes := s.ByRoute()
	assert.Equal(t, Counters{Allowed: 1, Denied: 1, DeniedRoute: 1}, routes["GET yiff.rest/a"])

	keys := s.ByKey()
	assert.Len(t, keys, 2)
	assert.Equal(t, int64(1), keys["10.0.0.2"].DeniedGlobal)
}

func TestRedisStatsStore_Record(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedisStatsStore(client, WithStatsPrefix("stats:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	ctx := context.Background()
	at := time.Date(2024, 3, 4, 5, 6, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Identity: "10.0.0.1", Allowed: true, Method: "GET", Domain: "yiff.rest", Path: "/a", At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Identity: "10.0.0.1", Scope: domain.ScopeGlobal, Method: "GET", Domain: "yiff.rest", Path: "/a", At: at}))

	assert.Equal(t, "1", mr.HGet("stats:total", "allowed"))
	assert.Equal(t, "1", mr.HGet("stats:total", "denied"))
	assert.Equal(t, "1", mr.HGet("stats:total", "denied:global"))
	assert.Equal(t, "1", mr.HGet("stats:minute:202403040506", "allowed"))
	assert.Equal(t, "1", mr.HGet("stats:route", "GET yiff.rest/a:denied:global"))
	assert.Equal(t, "1", mr.HGet("stats:key:10.0.0.1", "denied"))
	assert.Equal(t, time.Hour, mr.TTL("stats:key:10.0.0.1"))
	assert.Equal(t, time.Duration(0), mr.TTL("stats:total"))
}
