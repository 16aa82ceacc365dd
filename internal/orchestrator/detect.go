package orchestrator

import (
	"context"
	"sync"

	"github.com/his-sync/replicator/internal/detector"
	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
	"github.com/his-sync/replicator/internal/lifecycle"
	"github.com/his-sync/replicator/internal/metadata"
	"github.com/his-sync/replicator/internal/metrics"
	"github.com/his-sync/replicator/internal/store"
)

// Watermarks persists the per-configuration/resource watermark the detector
// compares lastUpdated filter results against (spec.md §4.5); the
// application wiring layer backs this with cache.ReplicationCache.
type Watermarks interface {
	detector.Watermarks
}

// AuditCapableCache remembers, per destination instance and resource,
// whether the audit endpoint probe already succeeded (spec.md §4.5, probed
// once per instance and cached). The application wiring layer backs this
// with cache.ReplicationCache so the answer survives across ticks.
type AuditCapableCache interface {
	Get(instanceID, resource string) (bool, bool)
	Set(instanceID, resource string, capable bool)
}

// DetectorAdapter wraps the Change Detector so it satisfies lifecycle.
// Detector, building one detector.Detector per configuration (its source
// supplies the lastUpdated filter probe, its destination the audit-endpoint
// probe) and resolving the monitored resources/identifiers on every call.
type DetectorAdapter struct {
	configs    store.ConfigurationStore
	instances  store.InstanceStore
	autoSync   store.AutoSyncStore
	clients    ClientFactory
	watermarks Watermarks
	auditCache AuditCapableCache

	mu        sync.Mutex
	detectors map[string]*detector.Detector // keyed by configuration id

	// Metrics is optional; nil disables metric recording.
	Metrics *metrics.Metrics
}

// NewDetectorAdapter builds a DetectorAdapter around the stores and client
// factory the orchestrator already uses, so no separate HIS connection pool
// is needed for change detection (spec.md §5).
func NewDetectorAdapter(configs store.ConfigurationStore, instances store.InstanceStore, autoSync store.AutoSyncStore, clients ClientFactory, watermarks Watermarks, auditCache AuditCapableCache) *DetectorAdapter {
	return &DetectorAdapter{
		configs:    configs,
		instances:  instances,
		autoSync:   autoSync,
		clients:    clients,
		watermarks: watermarks,
		auditCache: auditCache,
		detectors:  make(map[string]*detector.Detector),
	}
}

// Detect satisfies lifecycle.Detector.
func (a *DetectorAdapter) Detect(ctx context.Context, configID string) (lifecycle.ChangeResult, error) {
	cfg, err := a.configs.GetConfiguration(ctx, configID)
	if err != nil {
		return lifecycle.ChangeResult{}, err
	}

	det, err := a.detectorFor(ctx, cfg)
	if err != nil {
		return lifecycle.ChangeResult{}, err
	}

	monitorMetadata, monitorData := true, true
	var settings *autosync.Settings
	if loaded, err := a.autoSync.GetAutoSync(ctx, configID); err == nil {
		monitorMetadata = loaded.MonitorMetadata
		monitorData = loaded.MonitorData
		settings = &loaded
	}

	var metadataChanged []string
	if monitorMetadata {
		resources, err := monitoredMetadataResources(cfg, settings)
		if err != nil {
			return lifecycle.ChangeResult{}, err
		}
		metadataChanged, err = det.DetectMetadata(ctx, configID, resources)
		if err != nil {
			return lifecycle.ChangeResult{}, err
		}
	}

	var dataChangeTypes []string
	if monitorData {
		for _, phase := range cfg.Phases() {
			changed, err := a.detectDataPhase(ctx, det, cfg, configID, phase)
			if err != nil {
				return lifecycle.ChangeResult{}, err
			}
			if changed {
				dataChangeTypes = append(dataChangeTypes, phase)
			}
		}
	}
	metadataChanges := len(metadataChanged) > 0
	if a.Metrics != nil {
		a.Metrics.DetectorChecksTotal.WithLabelValues("metadata", resultLabel(metadataChanges)).Inc()
		for _, phase := range dataChangeTypes {
			a.Metrics.DetectorChecksTotal.WithLabelValues(phase, "changed").Inc()
		}
	}
	return lifecycle.ChangeResult{
		HasChanges:      metadataChanges || len(dataChangeTypes) > 0,
		MetadataChanges: metadataChanges,
		DataChangeTypes: dataChangeTypes,
	}, nil
}

func resultLabel(changed bool) string {
	if changed {
		return "changed"
	}
	return "unchanged"
}

// detectorFor returns the cached *detector.Detector for cfg, building it on
// first use from the configuration's source (lastUpdated filter probe) and
// destination (audit-endpoint probe) clients.
func (a *DetectorAdapter) detectorFor(ctx context.Context, cfg syncconfig.SyncConfiguration) (*detector.Detector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if det, ok := a.detectors[cfg.ID]; ok {
		return det, nil
	}

	srcInst, err := a.instances.GetInstance(ctx, cfg.SourceID)
	if err != nil {
		return nil, err
	}
	destInst, err := a.instances.GetInstance(ctx, cfg.DestinationID)
	if err != nil {
		return nil, err
	}

	source := a.clients(srcInst)
	destination := a.clients(destInst)
	det := detector.New(
		source,
		auditProbeAdapter{client: destination, instanceID: destInst.ID, cache: a.auditCache},
		a.watermarks,
		nil,
	)
	a.detectors[cfg.ID] = det
	return det, nil
}

// detectDataPhase reports whether any identifier configured for phase
// (data sets for aggregate, programs for events/tracker) has changed since
// its watermark. Events and tracker share DetectEventsOrTracker's
// lastUpdatedStartDate semantics (spec.md §4.5).
func (a *DetectorAdapter) detectDataPhase(ctx context.Context, det *detector.Detector, cfg syncconfig.SyncConfiguration, configID, phase string) (bool, error) {
	var ids []string
	switch phase {
	case "aggregate":
		ids = cfg.DataSets
	case "events", "tracker":
		ids = cfg.Programs
	default:
		return false, nil
	}
	if len(ids) == 0 {
		ids = []string{phase}
	}

	for _, id := range ids {
		var (
			changed detector.AggregateChangeReport
			err     error
		)
		if phase == "aggregate" {
			changed, err = det.DetectAggregate(ctx, configID, id)
		} else {
			changed, err = det.DetectEventsOrTracker(ctx, configID, id)
		}
		if err != nil {
			return false, err
		}
		if changed.HasChanges {
			return true, nil
		}
	}
	return false, nil
}

// monitoredMetadataResources resolves the family closure for cfg (or every
// family when none is named) and filters each member through the auto-sync
// include/exclude lists, when present.
func monitoredMetadataResources(cfg syncconfig.SyncConfiguration, settings *autosync.Settings) ([]string, error) {
	selected := cfg.Families
	if len(selected) == 0 {
		for _, f := range metadata.Families {
			selected = append(selected, f.Name)
		}
	}
	families, err := metadata.ResolveClosure(selected)
	if err != nil {
		return nil, err
	}

	var resources []string
	for _, family := range families {
		for _, resource := range family.Members {
			if settings != nil && !settings.ResourceMonitored(resource) {
				continue
			}
			resources = append(resources, resource)
		}
	}
	return resources, nil
}

// auditProbeAdapter satisfies detector.AuditProbe against one destination
// instance's HISClient, remembering the probe's answer in the shared
// AuditCapableCache keyed by instance+resource (spec.md §4.5).
type auditProbeAdapter struct {
	client     HISClient
	instanceID string
	cache      AuditCapableCache
}

func (a auditProbeAdapter) ProbeAuditEndpoint(ctx context.Context, resource string) (bool, error) {
	if capable, ok := a.cache.Get(a.instanceID, resource); ok {
		return capable, nil
	}
	capable, err := a.client.ProbeAuditEndpoint(ctx, resource)
	if err != nil {
		return false, err
	}
	a.cache.Set(a.instanceID, resource, capable)
	return capable, nil
}
