package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"websites-gateway/middleware/ratelimit/domain"
)

// Defaults para tráfego anônimo (sem API key).
var DefaultLimits = domain.Limits{
	GlobalWindow: 10 * time.Second,
	GlobalLimit:  7,
	RouteWindow:  2 * time.Second,
	RouteLimit:   2,
}

// Tier é a configuração de uma API key.
type Tier struct {
	Limits    domain.Limits
	Unlimited bool
}

// Policy resolve os limites de uma requisição a partir da API key.
//
// O bypass de chaves ilimitadas é responsabilidade de quem chama o Service:
// Resolve devolve ok=false e o caller nem chega a avaliar.
type Policy struct {
	Defaults domain.Limits
	Keys     map[string]Tier
}

// Resolve devolve (limites, true) ou (zero, false) quando a chave é ilimitada.
// Chave desconhecida cai nos defaults.
func (p Policy) Resolve(apiKey string) (domain.Limits, bool) {
	def := p.Defaults
	if def == (domain.Limits{}) {
		def = DefaultLimits
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return def, true
	}
	tier, ok := p.Keys[apiKey]
	if !ok {
		return def, true
	}
	if tier.Unlimited {
		return domain.Limits{}, false
	}
	return tier.Limits, true
}

// ParseTiers lê o formato KEY:GLOBAL_LIMIT:GLOBAL_WINDOW_MS:ROUTE_LIMIT:ROUTE_WINDOW_MS
// ou KEY:unlimited, separados por vírgula.
func ParseTiers(raw string) (map[string]Tier, error) {
	out := make(map[string]Tier)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("api key tier has empty key: %q", item)
		}

		if len(parts) == 2 && strings.EqualFold(strings.TrimSpace(parts[1]), "unlimited") {
			out[key] = Tier{Unlimited: true}
			continue
		}
		if len(parts) != 5 {
			return nil, fmt.Errorf("api key tier must follow KEY:GLOBAL_LIMIT:GLOBAL_WINDOW_MS:ROUTE_LIMIT:ROUTE_WINDOW_MS or KEY:unlimited: %q", item)
		}

		nums := make([]int64, 4)
		for i, p := range parts[1:] {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number in tier for key %s: %w", key, err)
			}
			nums[i] = n
		}

		lim := domain.Limits{
			GlobalLimit:  nums[0],
			GlobalWindow: time.Duration(nums[1]) * time.Millisecond,
			RouteLimit:   nums[2],
			RouteWindow:  time.Duration(nums[3]) * time.Millisecond,
		}
		if err := lim.Validate(); err != nil {
			return nil, fmt.Errorf("tier for key %s: %w", key, err)
		}
		out[key] = Tier{Limits: lim}
	}
	return out, nil
}
