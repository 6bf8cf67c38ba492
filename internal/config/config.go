// Package config centraliza o carregamento de configurações dos binários.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"websites-gateway/middleware/abuse"
	"websites-gateway/middleware/ratelimit/application"
	"websites-gateway/middleware/ratelimit/domain"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string
	// Site é o domínio canônico usado na normalização do bucket de rota.
	Site string
	// ReadOnly troca o Redis pelo store em memória (escolhido uma vez, no startup).
	ReadOnly bool

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Alerts    AlertConfig
	Stats     StatsConfig
	Abuse     AbuseConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Name       string
	Defaults   domain.Limits
	Tiers      map[string]application.Tier
	TrustProxy bool
}

type AlertConfig struct {
	WebhookURL  string
	Username    string
	RPS         float64
	Burst       int
	MaxInFlight int
}

type StatsConfig struct {
	Enabled   bool
	Prefix    string
	TTL       time.Duration
	Bucket    string
	TrackKeys bool
}

type AbuseConfig struct {
	UserAgents       []abuse.UserAgentRule
	BlocklistFile    string
	BlocklistRefresh time.Duration
	HelpURL          string
}

// Load lê o ambiente. Se existir, o .env (ou os arquivos passados) é carregado
// antes, sem sobrescrever variáveis já definidas.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		ListenAddr:  getenvDefault("LISTEN_ADDR", ":8080"),
		UpstreamURL: strings.TrimSpace(getenvDefault("UPSTREAM_URL", "")),
		Site:        strings.ToLower(strings.TrimSpace(getenvDefault("SITE", ""))),
		ReadOnly:    getenvBoolDefault("READONLY", false),
		Redis: RedisConfig{
			Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
			Password: getenvDefault("REDIS_PASSWORD", ""),
			DB:       getenvIntDefault("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Name: getenvDefault("RATE_LIMITER_NAME", application.DefaultLimiterName),
			Defaults: domain.Limits{
				GlobalWindow: getenvDurationDefault("RATE_GLOBAL_WINDOW", application.DefaultLimits.GlobalWindow),
				GlobalLimit:  int64(getenvIntDefault("RATE_GLOBAL_LIMIT", int(application.DefaultLimits.GlobalLimit))),
				RouteWindow:  getenvDurationDefault("RATE_ROUTE_WINDOW", application.DefaultLimits.RouteWindow),
				RouteLimit:   int64(getenvIntDefault("RATE_ROUTE_LIMIT", int(application.DefaultLimits.RouteLimit))),
			},
			TrustProxy: getenvBoolDefault("TRUST_PROXY", false),
		},
		Alerts: AlertConfig{
			WebhookURL:  strings.TrimSpace(getenvDefault("ALERT_WEBHOOK_URL", "")),
			Username:    getenvDefault("ALERT_WEBHOOK_USERNAME", "Rate Limiter"),
			RPS:         getenvFloatDefault("ALERT_RPS", 0.2),
			Burst:       getenvIntDefault("ALERT_BURST", 1),
			MaxInFlight: getenvIntDefault("ALERT_MAX_INFLIGHT", 4),
		},
		Stats: StatsConfig{
			Enabled:   getenvBoolDefault("RATE_STATS_ENABLED", false),
			Prefix:    getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats"),
			TTL:       getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour),
			Bucket:    getenvDefault("RATE_STATS_BUCKET", "minute"),
			TrackKeys: getenvBoolDefault("RATE_STATS_TRACK_KEYS", false),
		},
		Abuse: AbuseConfig{
			BlocklistFile:    strings.TrimSpace(getenvDefault("BLOCKLIST_FILE", "")),
			BlocklistRefresh: getenvDurationDefault("BLOCKLIST_REFRESH", 30*time.Second),
			HelpURL:          getenvDefault("ABUSE_HELP_URL", ""),
		},
	}

	if err := cfg.RateLimit.Defaults.Validate(); err != nil {
		return Config{}, fmt.Errorf("default limits: %w", err)
	}

	tiers, err := application.ParseTiers(getenvDefault("API_KEYS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("invalid API_KEYS: %w", err)
	}
	cfg.RateLimit.Tiers = tiers

	rules, err := abuse.ParseUserAgentRules(getenvDefault("BLOCKED_USER_AGENTS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLOCKED_USER_AGENTS: %w", err)
	}
	cfg.Abuse.UserAgents = rules

	if cfg.Alerts.RPS <= 0 {
		return Config{}, errors.New("ALERT_RPS must be > 0")
	}
	if cfg.Alerts.Burst <= 0 {
		return Config{}, errors.New("ALERT_BURST must be > 0")
	}
	return cfg, nil
}

// Policy monta a application.Policy a partir dos defaults e tiers.
func (c RateLimitConfig) Policy() application.Policy {
	return application.Policy{Defaults: c.Defaults, Keys: c.Tiers}
}
