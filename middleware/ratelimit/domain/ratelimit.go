package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"encoding/base64"
	"errors"
	"time"
)

// Scope identifica qual das duas cotas aninhadas um contador representa.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeRoute  Scope = "route"
)

// Sentinelas de TTL, no mesmo formato que o Redis devolve em PTTL.
//
// TTLNoExpiry indica um contador existente sem expiração (condição de reparo).
// TTLMissing indica que o contador não existe.
const (
	TTLNoExpiry time.Duration = -1
	TTLMissing  time.Duration = -2
)

var (
	ErrNoStore       = errors.New("ratelimit: counter store is required")
	ErrInvalidLimits = errors.New("ratelimit: windows and limits must be positive")
)

// CounterKey é a identidade composta de um contador.
// Para ScopeGlobal, Bucket fica vazio.
type CounterKey struct {
	Limiter  string
	Scope    Scope
	Bucket   string
	Identity string
}

func GlobalKey(limiter, identity string) CounterKey {
	return CounterKey{Limiter: limiter, Scope: ScopeGlobal, Identity: identity}
}

func RouteKey(limiter, bucket, identity string) CounterKey {
	return CounterKey{Limiter: limiter, Scope: ScopeRoute, Bucket: bucket, Identity: identity}
}

// String devolve o nome estável da chave no backend:
//
//	rl:<limiter>:global:<identity>
//	rl:<limiter>:route:<bucket>:<identity>
//
// Esse formato precisa sobreviver a restarts, senão janelas em andamento se perdem.
func (k CounterKey) String() string {
	if k.Scope == ScopeRoute {
		return "rl:" + k.Limiter + ":route:" + k.Bucket + ":" + k.Identity
	}
	return "rl:" + k.Limiter + ":global:" + k.Identity
}

// RouteBucket codifica o par (domain, path) em base64url sem padding.
func RouteBucket(domain, path string) string {
	return base64.RawURLEncoding.EncodeToString([]byte("domain=" + domain + ",path=" + path))
}

// DecodeRouteBucket faz o caminho inverso de RouteBucket (usado nos alertas).
func DecodeRouteBucket(bucket string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(bucket)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// KnownTTL converte um TTL bruto do backend em (ttl, true), ou (0, false)
// quando ele é uma das sentinelas.
func KnownTTL(ttl time.Duration) (time.Duration, bool) {
	if ttl < 0 {
		return 0, false
	}
	return ttl, true
}

// CounterStore é o backend de contadores com expiração.
//
// Cada operação é atômica por chave; nenhuma operação envolve duas chaves.
type CounterStore interface {
	// Count devolve o valor atual e false se o contador está ausente/expirado.
	Count(ctx context.Context, key CounterKey) (int64, bool, error)

	// TTL devolve o tempo restante até a expiração, ou TTLNoExpiry / TTLMissing.
	TTL(ctx context.Context, key CounterKey) (time.Duration, error)

	// Consume incrementa e devolve o valor pós-incremento. Se o valor anterior
	// já for >= limit, devolve limit+1 sem incrementar. No primeiro uso o
	// contador nasce em 0 com expiração window, antes do incremento.
	Consume(ctx context.Context, key CounterKey, window time.Duration, limit int64) (int64, error)

	// Restore decrementa o contador em 1 (rollback compensatório).
	Restore(ctx context.Context, key CounterKey) error

	// RepairExpiry força a expiração para window quando observed == TTLNoExpiry
	// e devolve (window, 0). Caso contrário devolve (observed, window-observed).
	RepairExpiry(ctx context.Context, key CounterKey, observed, window time.Duration) (effective, elapsed time.Duration, err error)
}

// Limits são os parâmetros por requisição, vindos da API key ou dos defaults.
type Limits struct {
	GlobalWindow time.Duration
	GlobalLimit  int64
	RouteWindow  time.Duration
	RouteLimit   int64
}

func (l Limits) Validate() error {
	if l.GlobalWindow <= 0 || l.RouteWindow <= 0 || l.GlobalLimit <= 0 || l.RouteLimit <= 0 {
		return ErrInvalidLimits
	}
	return nil
}

// Request reúne o que a camada HTTP extrai da requisição.
// UserAgent, Host e Auth só servem de contexto para o alerta.
type Request struct {
	Identity  string
	Domain    string
	Path      string
	Host      string
	UserAgent string
	Auth      string
	Limits    Limits
}

type RejectCode int

const (
	RejectRoute  RejectCode = 1000
	RejectGlobal RejectCode = 1001
)

func (c RejectCode) String() string {
	switch c {
	case RejectRoute:
		return "RATELIMIT_ROUTE"
	case RejectGlobal:
		return "RATELIMIT_GLOBAL"
	}
	return "UNKNOWN"
}

// Decision é o resultado de uma cota (route ou global) numa avaliação.
//
// Remaining nunca é negativo. ResetAt e ResetAfter saem do mesmo TTL.
// HasTTL é false quando o contador não existe no backend.
type Decision struct {
	Scope      Scope
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	ResetAfter time.Duration
	HasTTL     bool
	Bucket     string
}

type Rejection struct {
	Code RejectCode
	// RetryAfter já vem arredondado para cima em segundos inteiros.
	RetryAfter time.Duration
}

func (r Rejection) RetryAfterSeconds() int64 {
	return int64(r.RetryAfter / time.Second)
}

// Evaluation é a saída de Service.Evaluate.
type Evaluation struct {
	Admitted  bool
	Route     Decision
	Global    Decision
	Rejection *Rejection
}
