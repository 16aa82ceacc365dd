// Package app wires every collaborator package into one running process:
// the store, the cache, the per-instance HIS clients, the three pipelines,
// the Sync Orchestrator, the Change Detector, the Lifecycle Manager, and the
// Scheduler, all registered with a system.Manager for ordered start/stop.
package app

import (
	"context"
	"strconv"
	"time"

	"github.com/his-sync/replicator/internal/cache"
	"github.com/his-sync/replicator/internal/lifecycle"
)

// cacheWatermarks adapts a cache.ReplicationCache to orchestrator.Watermarks
// (and, transitively, detector.Watermarks), so watermark advances are shared
// across every monitor task (spec.md §5). They survive a process restart only
// with the Redis backend; the in-memory backend loses them.
type cacheWatermarks struct {
	backend cache.ReplicationCache
}

func newCacheWatermarks(backend cache.ReplicationCache) *cacheWatermarks {
	return &cacheWatermarks{backend: backend}
}

func (w *cacheWatermarks) Get(configID, resource string) (time.Time, bool) {
	value, ok, err := w.backend.GetTime(context.Background(), cache.WatermarkKey(configID, resource))
	if err != nil {
		return time.Time{}, false
	}
	return value, ok
}

func (w *cacheWatermarks) Advance(configID, resource string, to time.Time) {
	_ = w.backend.SetTime(context.Background(), cache.WatermarkKey(configID, resource), to, 0)
}

// cacheAuditCapable adapts a cache.ReplicationCache to
// orchestrator.AuditCapableCache, remembering each destination's audit-
// endpoint probe result for the life of the cache entry rather than just
// the process (spec.md §4.5).
type cacheAuditCapable struct {
	backend cache.ReplicationCache
}

func newCacheAuditCapable(backend cache.ReplicationCache) *cacheAuditCapable {
	return &cacheAuditCapable{backend: backend}
}

func (c *cacheAuditCapable) Get(instanceID, resource string) (bool, bool) {
	value, ok, err := c.backend.GetString(context.Background(), cache.AuditCapableKey(instanceID, resource))
	if err != nil || !ok {
		return false, false
	}
	capable, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return capable, true
}

func (c *cacheAuditCapable) Set(instanceID, resource string, capable bool) {
	_ = c.backend.SetString(context.Background(), cache.AuditCapableKey(instanceID, resource), strconv.FormatBool(capable), 0)
}

// cacheCooldowns adapts a cache.ReplicationCache to lifecycle.CooldownStore.
type cacheCooldowns struct {
	backend cache.ReplicationCache
}

func newCacheCooldowns(backend cache.ReplicationCache) *cacheCooldowns {
	return &cacheCooldowns{backend: backend}
}

func (c *cacheCooldowns) CooldownUntil(configID string) (time.Time, bool) {
	value, ok, err := c.backend.GetTime(context.Background(), cache.CooldownKey(configID))
	if err != nil {
		return time.Time{}, false
	}
	return value, ok
}

func (c *cacheCooldowns) ArmCooldown(configID string, until time.Time) {
	ttl := time.Until(until)
	if ttl < 0 {
		ttl = 0
	}
	_ = c.backend.SetTime(context.Background(), cache.CooldownKey(configID), until, ttl)
}

func (c *cacheCooldowns) ClearCooldown(configID string) {
	_ = c.backend.Delete(context.Background(), cache.CooldownKey(configID))
}

// cacheLifecycleStates adapts a cache.ReplicationCache to lifecycle.
// StateStore.
type cacheLifecycleStates struct {
	backend cache.ReplicationCache
}

func newCacheLifecycleStates(backend cache.ReplicationCache) *cacheLifecycleStates {
	return &cacheLifecycleStates{backend: backend}
}

func (s *cacheLifecycleStates) Get(configID string) lifecycle.State {
	value, ok, err := s.backend.GetString(context.Background(), cache.LifecycleStateKey(configID))
	if err != nil || !ok {
		return lifecycle.StateInitial
	}
	return lifecycle.State(value)
}

func (s *cacheLifecycleStates) Set(configID string, state lifecycle.State) {
	_ = s.backend.SetString(context.Background(), cache.LifecycleStateKey(configID), string(state), 0)
}
