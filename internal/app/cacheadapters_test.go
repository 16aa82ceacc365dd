package app

import (
	"testing"
	"time"

	"github.com/his-sync/replicator/internal/cache"
	"github.com/his-sync/replicator/internal/lifecycle"
)

func TestCacheWatermarksRoundTrips(t *testing.T) {
	w := newCacheWatermarks(cache.NewMemoryCache())

	if _, ok := w.Get("cfg-1", "dataElement"); ok {
		t.Fatalf("expected no watermark before Advance")
	}

	now := time.Now().UTC().Truncate(time.Second)
	w.Advance("cfg-1", "dataElement", now)

	got, ok := w.Get("cfg-1", "dataElement")
	if !ok {
		t.Fatalf("expected watermark after Advance")
	}
	if !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}
}

func TestCacheAuditCapableRoundTrips(t *testing.T) {
	c := newCacheAuditCapable(cache.NewMemoryCache())

	if _, ok := c.Get("inst-1", "dataElement"); ok {
		t.Fatalf("expected no cached answer before Set")
	}

	c.Set("inst-1", "dataElement", true)
	capable, ok := c.Get("inst-1", "dataElement")
	if !ok || !capable {
		t.Fatalf("expected cached capable=true, got capable=%v ok=%v", capable, ok)
	}

	c.Set("inst-1", "trackedEntityInstance", false)
	capable, ok = c.Get("inst-1", "trackedEntityInstance")
	if !ok || capable {
		t.Fatalf("expected cached capable=false, got capable=%v ok=%v", capable, ok)
	}
}

func TestCacheCooldownsArmAndClear(t *testing.T) {
	c := newCacheCooldowns(cache.NewMemoryCache())

	if _, ok := c.CooldownUntil("cfg-1"); ok {
		t.Fatalf("expected no cooldown before ArmCooldown")
	}

	until := time.Now().Add(10 * time.Minute)
	c.ArmCooldown("cfg-1", until)

	got, ok := c.CooldownUntil("cfg-1")
	if !ok {
		t.Fatalf("expected cooldown after ArmCooldown")
	}
	if got.Sub(until).Abs() > time.Second {
		t.Fatalf("expected cooldown close to %v, got %v", until, got)
	}

	c.ClearCooldown("cfg-1")
	if _, ok := c.CooldownUntil("cfg-1"); ok {
		t.Fatalf("expected no cooldown after ClearCooldown")
	}
}

func TestCacheLifecycleStatesDefaultsToInitial(t *testing.T) {
	s := newCacheLifecycleStates(cache.NewMemoryCache())

	if got := s.Get("cfg-1"); got != lifecycle.StateInitial {
		t.Fatalf("expected StateInitial before Set, got %q", got)
	}

	s.Set("cfg-1", lifecycle.State("MONITORING"))
	if got := s.Get("cfg-1"); got != lifecycle.State("MONITORING") {
		t.Fatalf("expected MONITORING, got %q", got)
	}
}
