package abuse

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

type UserAgentRule struct {
	Pattern *regexp.Regexp
	Reason  string
}

// ParseUserAgentRules lê entradas "regex=motivo" separadas por ";".
// O último "=" separa o motivo, então a regex pode conter "=".
func ParseUserAgentRules(raw string) ([]UserAgentRule, error) {
	var out []UserAgentRule
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		i := strings.LastIndex(item, "=")
		if i <= 0 {
			return nil, fmt.Errorf("user agent rule must follow regex=reason: %q", item)
		}
		re, err := regexp.Compile(strings.TrimSpace(item[:i]))
		if err != nil {
			return nil, fmt.Errorf("user agent rule %q: %w", item, err)
		}
		out = append(out, UserAgentRule{Pattern: re, Reason: strings.TrimSpace(item[i+1:])})
	}
	return out, nil
}

// UserAgentMiddleware responde 403 (code 1021) quando o User-Agent casa com alguma regra.
func UserAgentMiddleware(rules []UserAgentRule, helpURL string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(rules) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.Header.Get("User-Agent")
			for _, rule := range rules {
				if rule.Pattern.MatchString(ua) {
					writeForbidden(w, blockedBody{
						Error: `Your user agent has been blocked. See "extra" for the reasoning.`,
						Code:  CodeBlockedUserAgent,
						Extra: blockedInfo{Reason: rule.Reason, Help: helpURL},
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
