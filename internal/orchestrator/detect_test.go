package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/instance"
)

// fakeWatermarks is a minimal in-memory Watermarks for tests.
type fakeWatermarks struct {
	values map[string]time.Time
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{values: make(map[string]time.Time)}
}

func (w *fakeWatermarks) Get(configID, resource string) (time.Time, bool) {
	t, ok := w.values[configID+"/"+resource]
	return t, ok
}

func (w *fakeWatermarks) Advance(configID, resource string, to time.Time) {
	w.values[configID+"/"+resource] = to
}

// fakeAuditCache is a minimal in-memory AuditCapableCache for tests.
type fakeAuditCache struct {
	values map[string]bool
}

func newFakeAuditCache() *fakeAuditCache {
	return &fakeAuditCache{values: make(map[string]bool)}
}

func (c *fakeAuditCache) Get(instanceID, resource string) (bool, bool) {
	v, ok := c.values[instanceID+"/"+resource]
	return v, ok
}

func (c *fakeAuditCache) Set(instanceID, resource string, capable bool) {
	c.values[instanceID+"/"+resource] = capable
}

// fakeFilterClient extends fakeHISClient with a scriptable lastUpdated body
// per resource, so DetectMetadata's pager.total comparison can be driven.
type fakeFilterClient struct {
	fakeHISClient
	lastUpdated map[string][]byte
}

func (f *fakeFilterClient) FetchLastUpdated(_ context.Context, resource string) ([]byte, error) {
	return f.lastUpdated[resource], nil
}

func TestDetectorAdapter_Detect_NoAutoSyncSettingsDefaultsToMonitorBoth(t *testing.T) {
	st, _, _, cfg := setupStores(t)

	source := &fakeFilterClient{lastUpdated: map[string][]byte{
		"userRoles":  []byte(`{"pager":{"total":0}}`),
		"users":      []byte(`{"pager":{"total":1}}`),
		"userGroups": []byte(`{"pager":{"total":0}}`),
	}}
	destination := &fakeHISClient{}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	adapter := NewDetectorAdapter(st, st, st, factory, newFakeWatermarks(), newFakeAuditCache())
	result, err := adapter.Detect(context.Background(), cfg.ID)
	require.NoError(t, err)
	require.True(t, result.HasChanges)
	require.True(t, result.MetadataChanges)
}

func TestDetectorAdapter_Detect_MonitorMetadataDisabledSkipsMetadata(t *testing.T) {
	st, _, _, cfg := setupStores(t)
	ctx := context.Background()

	_, err := st.UpsertAutoSync(ctx, autosync.Settings{
		ConfigurationID: cfg.ID,
		IsEnabled:       true,
		CheckInterval:   60 * time.Second,
		MonitorMetadata: false,
		MonitorData:     true,
	})
	require.NoError(t, err)

	source := &fakeFilterClient{lastUpdated: map[string][]byte{
		"users": []byte(`{"pager":{"total":5}}`),
	}}
	destination := &fakeHISClient{}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	adapter := NewDetectorAdapter(st, st, st, factory, newFakeWatermarks(), newFakeAuditCache())
	result, err := adapter.Detect(ctx, cfg.ID)
	require.NoError(t, err)
	require.False(t, result.MetadataChanges)
}

func TestDetectorAdapter_Detect_ReusesCachedDetectorPerConfiguration(t *testing.T) {
	st, _, _, cfg := setupStores(t)

	source := &fakeFilterClient{lastUpdated: map[string][]byte{
		"userRoles": []byte(`{"pager":{"total":0}}`), "users": []byte(`{"pager":{"total":0}}`), "userGroups": []byte(`{"pager":{"total":0}}`),
	}}
	destination := &fakeHISClient{}

	factoryCalls := 0
	factory := func(inst instance.Instance) HISClient {
		factoryCalls++
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	adapter := NewDetectorAdapter(st, st, st, factory, newFakeWatermarks(), newFakeAuditCache())
	_, err := adapter.Detect(context.Background(), cfg.ID)
	require.NoError(t, err)
	_, err = adapter.Detect(context.Background(), cfg.ID)
	require.NoError(t, err)
	// The factory is only consulted while building the cached per-configuration
	// Detector (2 calls: source + destination), not again on the second Detect.
	require.Equal(t, 2, factoryCalls, "expected the detector to be cached after the first Detect")
}
