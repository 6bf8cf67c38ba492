package infra

import (
	"context"
	"log"

	"websites-gateway/middleware/ratelimit/domain"
)

// LogAlerter escreve uma linha por rejeição. Útil quando não há webhook configurado.
type LogAlerter struct {
	Logger *log.Logger
}

func (a LogAlerter) Notify(_ context.Context, al domain.Alert) {
	l := a.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("rate limit exceeded: scope=%s domain=%s path=%s ip=%s ua=%q limit=%d remaining=%d resetAfter=%dms bucket=%s",
		al.Scope, al.Domain, al.Path, al.Identity, al.UserAgent, al.Limit, al.Remaining, al.ResetAfter.Milliseconds(), al.Bucket)
}

// MultiAlerter repassa cada alerta para todos os alerters, na ordem.
type MultiAlerter []domain.Alerter

func (m MultiAlerter) Notify(ctx context.Context, al domain.Alert) {
	for _, a := range m {
		if a != nil {
			a.Notify(ctx, al)
		}
	}
}
