package abuse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestParseUserAgentRules(t *testing.T) {
	rules, err := ParseUserAgentRules(" ^python-requests=scraping ; (?i)bot=a=b ;; ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Reason != "scraping" || !rules[0].Pattern.MatchString("python-requests/2.31") {
		t.Fatalf("unexpected first rule: %+v", rules[0])
	}
	// o último "=" separa o motivo
	if rules[1].Reason != "b" || rules[1].Pattern.String() != "(?i)bot=a" {
		t.Fatalf("unexpected second rule: %q %q", rules[1].Pattern.String(), rules[1].Reason)
	}

	if _, err := ParseUserAgentRules("no-reason"); err == nil {
		t.Fatalf("expected error for entry without reason")
	}
	if _, err := ParseUserAgentRules("([=x"); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestUserAgentMiddleware_BlocksMatching(t *testing.T) {
	rules, err := ParseUserAgentRules("^python-requests=Automated scraping")
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	h := UserAgentMiddleware(rules, "https://example.com/support")(okHandler())

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("User-Agent", "python-requests/2.31")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	var body blockedBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Code != CodeBlockedUserAgent || body.Extra.Reason != "Automated scraping" {
		t.Fatalf("unexpected body: %+v", body)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for allowed user agent, got %d", w2.Code)
	}
}
