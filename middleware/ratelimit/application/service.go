package application

import (
	"context"
	"fmt"
	"time"

	"websites-gateway/middleware/ratelimit/domain"
)

const DefaultLimiterName = "yiffy2"

// Service concentra a regra de aplicação do rate limit de duas cotas.
//
// Ele não sabe nada sobre HTTP (headers/status) e não guarda estado: tudo que é
// mutável vive no Store. Evaluate pode ser chamado concorrentemente.
type Service struct {
	Store   domain.CounterStore
	Alerter domain.Alerter
	// Name entra na chave dos contadores ("rl:<Name>:...").
	Name string

	timeNow func() time.Time
}

func NewService(store domain.CounterStore, alerter domain.Alerter, name string) (*Service, error) {
	if store == nil {
		return nil, domain.ErrNoStore
	}
	if name == "" {
		name = DefaultLimiterName
	}
	return &Service{Store: store, Alerter: alerter, Name: name, timeNow: time.Now}, nil
}

func (s *Service) now() time.Time {
	if s.timeNow == nil {
		return time.Now()
	}
	return s.timeNow()
}

// Evaluate cobra a cota da rota e depois a global, nessa ordem.
//
// Se a rota já estourou, a global é só lida (nunca cobrada). Se a global estoura
// depois da rota ter admitido, a cobrança da rota é desfeita com Restore.
// Erros do Store são propagados (depois de desfazer o que já foi cobrado);
// rejeição não é erro.
func (s *Service) Evaluate(ctx context.Context, req domain.Request) (domain.Evaluation, error) {
	if s.Store == nil {
		return domain.Evaluation{}, domain.ErrNoStore
	}
	lim := req.Limits
	if err := lim.Validate(); err != nil {
		return domain.Evaluation{}, err
	}

	bucket := domain.RouteBucket(req.Domain, req.Path)
	routeKey := domain.RouteKey(s.Name, bucket, req.Identity)
	globalKey := domain.GlobalKey(s.Name, req.Identity)

	rRoute, err := s.Store.Consume(ctx, routeKey, lim.RouteWindow, lim.RouteLimit)
	if err != nil {
		return domain.Evaluation{}, err
	}
	// rota cobrada = o Consume incrementou (acima do limite ele não incrementa)
	var charged []domain.CounterKey
	if rRoute <= lim.RouteLimit {
		charged = append(charged, routeKey)
	}

	routeTTL, err := s.observeTTL(ctx, routeKey, lim.RouteWindow)
	if err != nil {
		return domain.Evaluation{}, s.rollback(ctx, err, charged...)
	}

	var ev domain.Evaluation
	ev.Route = s.decision(domain.ScopeRoute, lim.RouteLimit, rRoute, routeTTL)
	ev.Route.Bucket = bucket

	if rRoute-1 >= lim.RouteLimit {
		// só para os headers globais ficarem presentes na saída antecipada
		gCount, _, err := s.Store.Count(ctx, globalKey)
		if err != nil {
			return domain.Evaluation{}, err
		}
		globalTTL, err := s.observeTTL(ctx, globalKey, lim.GlobalWindow)
		if err != nil {
			return domain.Evaluation{}, err
		}
		ev.Global = s.decision(domain.ScopeGlobal, lim.GlobalLimit, gCount, globalTTL)
		ev.Rejection = &domain.Rejection{
			Code:       domain.RejectRoute,
			RetryAfter: retryAfter(ev.Route, lim.RouteWindow),
		}
		s.notify(ctx, req, ev.Route)
		return ev, nil
	}

	rGlobal, err := s.Store.Consume(ctx, globalKey, lim.GlobalWindow, lim.GlobalLimit)
	if err != nil {
		return domain.Evaluation{}, s.rollback(ctx, err, charged...)
	}
	if rGlobal <= lim.GlobalLimit {
		charged = append(charged, globalKey)
	}
	globalTTL, err := s.observeTTL(ctx, globalKey, lim.GlobalWindow)
	if err != nil {
		return domain.Evaluation{}, s.rollback(ctx, err, charged...)
	}
	ev.Global = s.decision(domain.ScopeGlobal, lim.GlobalLimit, rGlobal, globalTTL)

	if rGlobal-1 >= lim.GlobalLimit {
		// a requisição não vai passar, então a cobrança da rota é desfeita
		if err := s.Store.Restore(ctx, routeKey); err != nil {
			return domain.Evaluation{}, err
		}
		ev.Route.Remaining = remaining(lim.RouteLimit, rRoute-1)
		ev.Rejection = &domain.Rejection{
			Code:       domain.RejectGlobal,
			RetryAfter: retryAfter(ev.Global, lim.GlobalWindow),
		}
		s.notify(ctx, req, ev.Global)
		return ev, nil
	}

	ev.Admitted = true
	return ev, nil
}

// rollback desfaz as cobranças já feitas quando um passo seguinte falha, para
// nenhum contador ficar cobrado sem decisão. É best-effort: com o backend fora,
// o Restore provavelmente falha também, e o erro devolvido é sempre o original.
func (s *Service) rollback(ctx context.Context, err error, charged ...domain.CounterKey) error {
	for _, key := range charged {
		_ = s.Store.Restore(ctx, key)
	}
	return fmt.Errorf("evaluate: %w", err)
}

// observeTTL lê o TTL e repara "sem expiração" antes de qualquer header ser calculado.
func (s *Service) observeTTL(ctx context.Context, key domain.CounterKey, window time.Duration) (time.Duration, error) {
	ttl, err := s.Store.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	effective, _, err := s.Store.RepairExpiry(ctx, key, ttl, window)
	if err != nil {
		return 0, err
	}
	return effective, nil
}

func (s *Service) decision(scope domain.Scope, limit, consumed int64, ttl time.Duration) domain.Decision {
	d := domain.Decision{
		Scope:     scope,
		Limit:     limit,
		Remaining: remaining(limit, consumed),
	}
	resetAfter, ok := domain.KnownTTL(ttl)
	d.HasTTL = ok
	d.ResetAfter = resetAfter
	d.ResetAt = s.now().Add(resetAfter)
	return d
}

func (s *Service) notify(ctx context.Context, req domain.Request, d domain.Decision) {
	if s.Alerter == nil {
		return
	}
	s.Alerter.Notify(ctx, domain.Alert{
		Scope:      d.Scope,
		Domain:     req.Domain,
		Host:       req.Host,
		Path:       req.Path,
		Identity:   req.Identity,
		UserAgent:  req.UserAgent,
		Auth:       req.Auth,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetAt:    d.ResetAt,
		ResetAfter: d.ResetAfter,
		Bucket:     d.Bucket,
		At:         s.now(),
	})
}

func remaining(limit, consumed int64) int64 {
	if r := limit - consumed; r > 0 {
		return r
	}
	return 0
}

// retryAfter arredonda para cima em segundos. Sem TTL conhecido, usa a janela inteira.
func retryAfter(d domain.Decision, window time.Duration) time.Duration {
	wait := window
	if d.HasTTL {
		wait = d.ResetAfter
	}
	secs := (wait + time.Second - 1) / time.Second
	return secs * time.Second
}
