package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

type KeyFunc func(r *http.Request) string

// DefaultKeyFunc identifica o cliente.
//
// Ordem: keyHeader (se configurado), CF-Connecting-IP e X-Forwarded-For (só com
// trustProxy), e por fim o host do RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustProxy {
			if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
				return v
			}
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// hostname devolve o Host da requisição sem porta e em minúsculas.
func hostname(r *http.Request) string {
	h := strings.TrimSpace(r.Host)
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	return strings.ToLower(h)
}

// NormalizeDomain escolhe o domínio que entra no bucket da rota.
//
// Hosts que terminam em site são mantidos; qualquer outro vira site. Com isso
// v2.<site>/x e <site>/V2/x caem no mesmo bucket.
func NormalizeDomain(site, host, path string) string {
	site = strings.ToLower(strings.TrimSpace(site))
	if site == "" {
		return host
	}
	domain := site
	if host != "" && strings.HasSuffix(host, site) {
		domain = host
	}
	if domain == site && strings.HasPrefix(path, "/V2") {
		domain = "v2." + site
	}
	return domain
}

func userAgent(r *http.Request) string {
	if v := r.URL.Query().Get("_ua"); v != "" {
		return v
	}
	if v := r.Header.Get("User-Agent"); v != "" {
		return v
	}
	return "NONE"
}

func authKey(r *http.Request) string {
	if v := r.URL.Query().Get("_auth"); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("Authorization"))
}
