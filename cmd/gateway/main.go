package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"websites-gateway/internal/config"
	"websites-gateway/middleware/abuse"
	"websites-gateway/middleware/ratelimit"
	"websites-gateway/middleware/ratelimit/application"
	"websites-gateway/middleware/ratelimit/domain"
	"websites-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.UpstreamURL == "" {
		log.Fatalf("config error: UPSTREAM_URL is required")
	}

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// o backend é escolhido uma vez aqui; nada lê READONLY por requisição
	var (
		counters domain.CounterStore
		stats    domain.StatsStore
	)
	if cfg.ReadOnly {
		counters = infra.NewMemoryCounterStore()
		if cfg.Stats.Enabled {
			stats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		}
	} else {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		counters = infra.NewRedisCounterStore(rdb)
		if cfg.Stats.Enabled {
			stats = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.Stats.Prefix),
				infra.WithStatsTTL(cfg.Stats.TTL),
				infra.WithStatsBucket(cfg.Stats.Bucket),
				infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
		}
	}

	alerter, wait := buildAlerter(ctx, cfg.Alerts)
	defer wait()

	svc, err := application.NewService(counters, alerter, cfg.RateLimit.Name)
	if err != nil {
		log.Fatalf("rate limiter error: %v", err)
	}

	keyFn := ratelimit.DefaultKeyFunc("", cfg.RateLimit.TrustProxy)

	h := http.Handler(proxy)
	h = ratelimit.Middleware(ratelimit.Options{
		Limiter:    svc,
		Policy:     cfg.RateLimit.Policy(),
		Stats:      stats,
		KeyFn:      keyFn,
		TrustProxy: cfg.RateLimit.TrustProxy,
		Site:       cfg.Site,
	})(h)
	h = abuse.UserAgentMiddleware(cfg.Abuse.UserAgents, cfg.Abuse.HelpURL)(h)
	if cfg.Abuse.BlocklistFile != "" {
		bl := abuse.NewBlocklist(cfg.Abuse.BlocklistFile, cfg.Abuse.BlocklistRefresh, nil)
		if err := bl.Reload(); err != nil {
			log.Fatalf("blocklist error: %v", err)
		}
		h = abuse.BlocklistMiddleware(bl, keyFn, cfg.Abuse.HelpURL)(h)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	d := cfg.RateLimit.Defaults
	log.Printf("gateway listening on %s -> %s (site=%q)", cfg.ListenAddr, target, cfg.Site)
	log.Printf("rate: name=%q readonly=%v global=%d/%s route=%d/%s tiers=%d trustProxy=%v",
		cfg.RateLimit.Name, cfg.ReadOnly, d.GlobalLimit, d.GlobalWindow, d.RouteLimit, d.RouteWindow, len(cfg.RateLimit.Tiers), cfg.RateLimit.TrustProxy)
	log.Printf("rate-stats: enabled=%v bucket=%q ttl=%s trackKeys=%v", cfg.Stats.Enabled, cfg.Stats.Bucket, cfg.Stats.TTL, cfg.Stats.TrackKeys)
	log.Printf("abuse: userAgentRules=%d blocklist=%q refresh=%s", len(cfg.Abuse.UserAgents), cfg.Abuse.BlocklistFile, cfg.Abuse.BlocklistRefresh)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// buildAlerter sempre loga; com ALERT_WEBHOOK_URL também entrega no webhook.
// A função devolvida espera as entregas em voo no shutdown.
func buildAlerter(ctx context.Context, cfg config.AlertConfig) (domain.Alerter, func()) {
	logAlerter := infra.LogAlerter{Logger: log.New(os.Stderr, "ratelimit: ", log.LstdFlags)}
	if cfg.WebhookURL == "" {
		return logAlerter, func() {}
	}

	throttle := infra.NewThrottleStore(cfg.RPS, cfg.Burst)
	throttle.StartJanitor(ctx)

	webhook := infra.NewWebhookAlerter(
		cfg.WebhookURL,
		infra.WithWebhookUsername(cfg.Username),
		infra.WithWebhookThrottle(throttle),
		infra.WithWebhookMaxInFlight(cfg.MaxInFlight),
	)
	log.Printf("alerts: webhook enabled rps=%.3f burst=%d maxInFlight=%d", cfg.RPS, cfg.Burst, cfg.MaxInFlight)
	return infra.MultiAlerter{logAlerter, webhook}, webhook.Wait
}
