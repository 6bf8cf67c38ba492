package infra

import (
	"context"
	"strings"
	"sync"

	"websites-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	// Denied = DeniedRoute + DeniedGlobal
	Denied       int64
	DeniedRoute  int64
	DeniedGlobal int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
		return
	}
	c.Denied++
	switch ev.Scope {
	case domain.ScopeRoute:
		c.DeniedRoute++
	case domain.ScopeGlobal:
		c.DeniedGlobal++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o modo READONLY.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// routeLabel monta "METHOD domain/path", ignorando partes vazias.
func routeLabel(ev domain.StatsEvent) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Domain) + strings.TrimSpace(ev.Path))
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := routeLabel(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys && ev.Identity != "" {
		k := s.byKey[ev.Identity]
		k.add(ev)
		s.byKey[ev.Identity] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
