package domain

import (
	"context"
	"time"
)

// Alert descreve uma rejeição, com contexto suficiente para um humano investigar.
type Alert struct {
	Scope     Scope
	Domain    string
	Host      string
	Path      string
	Identity  string
	UserAgent string
	Auth      string

	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	ResetAfter time.Duration
	Bucket     string

	At time.Time
}

// Global indica se a rejeição veio da cota global.
func (a Alert) Global() bool { return a.Scope == ScopeGlobal }

// Alerter recebe notificações de rejeição.
//
// Notify é fire-and-forget: não bloqueia a decisão e não devolve erro.
// Falhas de entrega são problema (e log) da implementação.
type Alerter interface {
	Notify(ctx context.Context, a Alert)
}

// AlerterFunc adapta uma função comum para Alerter.
type AlerterFunc func(ctx context.Context, a Alert)

func (f AlerterFunc) Notify(ctx context.Context, a Alert) { f(ctx, a) }
