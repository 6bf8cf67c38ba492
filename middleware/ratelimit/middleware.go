package ratelimit

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"websites-gateway/middleware/ratelimit/application"
	"websites-gateway/middleware/ratelimit/domain"
)

// Evaluator é o que o adapter precisa do limiter (application.Service satisfaz).
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.Request) (domain.Evaluation, error)
}

type Options struct {
	Limiter Evaluator
	Policy  application.Policy
	Stats   domain.StatsStore
	KeyFn   KeyFunc
	// KeyHeader, se definido, tem prioridade sobre o IP na identificação do cliente.
	KeyHeader  string
	TrustProxy bool
	// Site é o domínio canônico (ex: "yiff.rest"). Vazio mantém o Host da requisição.
	Site         string
	RejectStatus int
	Logger       *log.Logger
}

// Guard aplica o rate limit a uma requisição. É o núcleo do Middleware e do
// adapter gin.
type Guard struct {
	opts    Options
	timeNow func() time.Time
}

func NewGuard(opts Options) *Guard {
	if opts.Limiter == nil {
		panic("ratelimit: Options.Limiter is required")
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustProxy)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "ratelimit: ", log.LstdFlags)
	}
	return &Guard{opts: opts, timeNow: time.Now}
}

// BuildRequest extrai da requisição HTTP tudo que o limiter precisa.
func (g *Guard) BuildRequest(r *http.Request, limits domain.Limits) domain.Request {
	host := hostname(r)
	return domain.Request{
		Identity:  g.opts.KeyFn(r),
		Domain:    NormalizeDomain(g.opts.Site, host, r.URL.Path),
		Path:      r.URL.Path,
		Host:      host,
		UserAgent: userAgent(r),
		Auth:      authKey(r),
		Limits:    limits,
	}
}

// Check avalia a requisição e escreve os headers de rate limit em w.
//
// Retorna true quando a requisição pode seguir. Quando retorna false a resposta
// (429 ou 500) já foi escrita.
func (g *Guard) Check(w http.ResponseWriter, r *http.Request) bool {
	limits, limited := g.opts.Policy.Resolve(authKey(r))
	if !limited {
		// chave ilimitada: nem passa pelo limiter
		return true
	}

	req := g.BuildRequest(r, limits)
	ev, err := g.opts.Limiter.Evaluate(r.Context(), req)
	if err != nil {
		g.opts.Logger.Printf("evaluate %s %s for %s: %v", req.Domain, req.Path, req.Identity, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Internal Server Error",
		})
		return false
	}

	h := w.Header()
	setRouteHeaders(h, ev.Route)
	setGlobalHeaders(h, ev.Global)

	g.record(r, req, ev)

	if ev.Admitted {
		return true
	}

	h.Set("Retry-After", formatInt(ev.Rejection.RetryAfterSeconds()))
	writeJSON(w, g.opts.RejectStatus, rejectionBody(ev))
	return false
}

// record é best-effort: erro de stats nunca muda a decisão.
func (g *Guard) record(r *http.Request, req domain.Request, ev domain.Evaluation) {
	if g.opts.Stats == nil {
		return
	}
	sev := domain.StatsEvent{
		Identity: req.Identity,
		Allowed:  ev.Admitted,
		Domain:   req.Domain,
		Method:   r.Method,
		Path:     req.Path,
		At:       g.timeNow(),
	}
	if ev.Rejection != nil {
		sev.Scope = domain.ScopeRoute
		if ev.Rejection.Code == domain.RejectGlobal {
			sev.Scope = domain.ScopeGlobal
		}
	}
	if err := g.opts.Stats.Record(r.Context(), sev); err != nil {
		g.opts.Logger.Printf("record stats: %v", err)
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	g := NewGuard(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Check(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
