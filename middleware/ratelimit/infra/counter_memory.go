package infra

import (
	"context"
	"sync"
	"time"

	"websites-gateway/middleware/ratelimit/domain"
)

// MemoryCounterStore é o CounterStore local ao processo, usado no modo degradado
// (READONLY), quando o Redis foi desligado de propósito.
//
// Expiração é preguiçosa: toda leitura/escrita de uma chave vencida apaga a entrada
// antes de seguir. Não existe varredura em background, então chaves que nunca
// voltam a ser acessadas ficam no map.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
	timeNow func() time.Time
}

type counterEntry struct {
	count int64
	// zero significa "sem expiração"; só acontece se alguém injetar estado assim.
	expiresAt time.Time
}

var _ domain.CounterStore = (*MemoryCounterStore)(nil)

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*counterEntry),
		timeNow: time.Now,
	}
}

// lookup aplica a expiração preguiçosa. Chamar com mu travado.
func (s *MemoryCounterStore) lookup(key string, now time.Time) (*counterEntry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !ent.expiresAt.IsZero() && ent.expiresAt.Before(now) {
		delete(s.entries, key)
		return nil, false
	}
	return ent, true
}

func (s *MemoryCounterStore) Count(_ context.Context, key domain.CounterKey) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.lookup(key.String(), s.timeNow())
	if !ok {
		return 0, false, nil
	}
	return ent.count, true, nil
}

func (s *MemoryCounterStore) TTL(_ context.Context, key domain.CounterKey) (time.Duration, error) {
	now := s.timeNow()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.lookup(key.String(), now)
	if !ok {
		return domain.TTLMissing, nil
	}
	if ent.expiresAt.IsZero() {
		return domain.TTLNoExpiry, nil
	}
	// mesma precisão do PTTL do Redis
	return ent.expiresAt.Sub(now).Truncate(time.Millisecond), nil
}

func (s *MemoryCounterStore) Consume(_ context.Context, key domain.CounterKey, window time.Duration, limit int64) (int64, error) {
	now := s.timeNow()
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.lookup(k, now)
	if !ok {
		ent = &counterEntry{expiresAt: now.Add(window)}
		s.entries[k] = ent
	}
	if ent.count >= limit {
		return limit + 1, nil
	}
	ent.count++
	return ent.count, nil
}

func (s *MemoryCounterStore) Restore(_ context.Context, key domain.CounterKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.lookup(key.String(), s.timeNow()); ok {
		ent.count--
	}
	return nil
}

func (s *MemoryCounterStore) RepairExpiry(_ context.Context, key domain.CounterKey, observed, window time.Duration) (time.Duration, time.Duration, error) {
	switch observed {
	case domain.TTLNoExpiry:
		now := s.timeNow()

		s.mu.Lock()
		if ent, ok := s.lookup(key.String(), now); ok {
			ent.expiresAt = now.Add(window)
		}
		s.mu.Unlock()
		return window, 0, nil
	case domain.TTLMissing:
		return observed, 0, nil
	}
	return observed, window - observed, nil
}

// Len devolve quantas entradas estão no map (inclusive vencidas ainda não tocadas).
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
