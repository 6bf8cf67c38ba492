package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"websites-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// restoreScript decrementa só se a chave existir, para um rollback atrasado não
// criar um contador negativo e sem TTL.
var restoreScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return redis.call("decr", KEYS[1])
	end
	return 0
`)

// consumeScript cria o contador (0 com PX window) se preciso, checa o limite e
// incrementa, tudo numa execução só. Acima do limite devolve limit+1 sem INCR.
//
// KEYS[1] = chave, ARGV[1] = janela em ms, ARGV[2] = limite
var consumeScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		redis.call("set", KEYS[1], 0, "px", ARGV[1])
	end
	local limit = tonumber(ARGV[2])
	local current = tonumber(redis.call("get", KEYS[1])) or 0
	if current >= limit then
		return limit + 1
	end
	return redis.call("incr", KEYS[1])
`)

// RedisCounterStore é o CounterStore distribuído, compartilhado entre processos.
//
// Consume roda como script Lua, então a checagem do limite e o INCR são atômicos
// por chave. A expiração só é definida na criação. Um contador que perdeu o TTL
// é corrigido por RepairExpiry logo depois do script.
type RedisCounterStore struct {
	rdb redis.UniversalClient
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore aceita *redis.Client, *redis.ClusterClient ou *redis.Ring.
func NewRedisCounterStore(rdb redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Count(ctx context.Context, key domain.CounterKey) (int64, bool, error) {
	v, err := s.rdb.Get(ctx, key.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisCounterStore) TTL(ctx context.Context, key domain.CounterKey) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, key.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	// go-redis devolve -1/-2 crus (em ns) para "sem expiração"/"não existe".
	switch ttl {
	case -1:
		return domain.TTLNoExpiry, nil
	case -2:
		return domain.TTLMissing, nil
	}
	return ttl, nil
}

func (s *RedisCounterStore) Consume(ctx context.Context, key domain.CounterKey, window time.Duration, limit int64) (int64, error) {
	k := key.String()

	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	v, err := consumeScript.Run(ctx, s.rdb, []string{k}, windowMs, limit).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis consume %s: %w", k, err)
	}

	ttl, err := s.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	if _, _, err := s.RepairExpiry(ctx, key, ttl, window); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *RedisCounterStore) Restore(ctx context.Context, key domain.CounterKey) error {
	if err := restoreScript.Run(ctx, s.rdb, []string{key.String()}).Err(); err != nil {
		return fmt.Errorf("redis restore %s: %w", key, err)
	}
	return nil
}

func (s *RedisCounterStore) RepairExpiry(ctx context.Context, key domain.CounterKey, observed, window time.Duration) (time.Duration, time.Duration, error) {
	switch observed {
	case domain.TTLNoExpiry:
		if err := s.rdb.PExpire(ctx, key.String(), window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis pexpire %s: %w", key, err)
		}
		return window, 0, nil
	case domain.TTLMissing:
		return observed, 0, nil
	}
	return observed, window - observed, nil
}
