package application

import (
	"testing"
	"time"

	"websites-gateway/middleware/ratelimit/domain"
)

func TestPolicy_Resolve(t *testing.T) {
	gold := domain.Limits{GlobalWindow: time.Minute, GlobalLimit: 100, RouteWindow: time.Second, RouteLimit: 10}
	p := Policy{Keys: map[string]Tier{
		"gold":  {Limits: gold},
		"admin": {Unlimited: true},
	}}

	if lim, ok := p.Resolve(""); !ok || lim != DefaultLimits {
		t.Fatalf("expected defaults for anonymous traffic, got %+v ok=%v", lim, ok)
	}
	if lim, ok := p.Resolve("unknown"); !ok || lim != DefaultLimits {
		t.Fatalf("expected defaults for unknown key, got %+v ok=%v", lim, ok)
	}
	if lim, ok := p.Resolve(" gold "); !ok || lim != gold {
		t.Fatalf("expected gold tier, got %+v ok=%v", lim, ok)
	}
	if _, ok := p.Resolve("admin"); ok {
		t.Fatalf("expected unlimited key to bypass")
	}

	custom := domain.Limits{GlobalWindow: time.Second, GlobalLimit: 1, RouteWindow: time.Second, RouteLimit: 1}
	if lim, _ := (Policy{Defaults: custom}).Resolve(""); lim != custom {
		t.Fatalf("expected custom defaults, got %+v", lim)
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("gold:100:60000:10:1000, admin:UNLIMITED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.Limits{GlobalWindow: time.Minute, GlobalLimit: 100, RouteWindow: time.Second, RouteLimit: 10}
	if tiers["gold"].Limits != want {
		t.Fatalf("unexpected gold tier: %+v", tiers["gold"])
	}
	if !tiers["admin"].Unlimited {
		t.Fatalf("expected admin to be unlimited")
	}

	for _, raw := range []string{"gold:1:2", ":1:1:1:1", "gold:x:1:1:1", "gold:0:1000:1:1000"} {
		if _, err := ParseTiers(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}

	empty, err := ParseTiers("  ")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map, got %v err=%v", empty, err)
	}
}
