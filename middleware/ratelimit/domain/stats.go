package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Scope só é preenchido quando a requisição foi rejeitada e indica qual cota estourou.
//
// Observação: cuidado com cardinalidade (ex.: salvar Identity/Path sem controle pode
// explodir o número de chaves no Redis).
type StatsEvent struct {
	Identity string
	Allowed  bool
	Scope    Scope

	Domain string
	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
