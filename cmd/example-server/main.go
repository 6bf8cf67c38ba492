package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"websites-gateway/internal/config"
	"websites-gateway/middleware/abuse"
	"websites-gateway/middleware/ratelimit"
	"websites-gateway/middleware/ratelimit/application"
	"websites-gateway/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: o rate limit injetado direto num webserver chi (sem proxy), em memória
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.ListenAddr == ":8080" {
		cfg.ListenAddr = ":8081"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := application.NewService(infra.NewMemoryCounterStore(), infra.LogAlerter{}, cfg.RateLimit.Name)
	if err != nil {
		log.Fatalf("rate limiter error: %v", err)
	}
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	r := chi.NewRouter()
	r.Use(abuse.UserAgentMiddleware(cfg.Abuse.UserAgents, cfg.Abuse.HelpURL))

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":   stats.Total(),
			"byRoute": stats.ByRoute(),
			"byKey":   stats.ByKey(),
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Limiter:    svc,
			Policy:     cfg.RateLimit.Policy(),
			Stats:      stats,
			TrustProxy: cfg.RateLimit.TrustProxy,
			Site:       cfg.Site,
		}))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok\n"))
		})
		r.Get("/V2/{category}/{name}", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":  true,
				"category": chi.URLParam(r, "category"),
				"name":     chi.URLParam(r, "name"),
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
