package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
	"github.com/his-sync/replicator/internal/hisapi"
	"github.com/his-sync/replicator/internal/store/memstore"
)

// fakeHISClient is a scriptable in-memory stand-in for *hisapi.Client,
// returning canned metadata pages and data payloads without any network I/O.
type fakeHISClient struct {
	probeErr error

	metadataPages map[string][]byte // resource -> single-page body
	importErr     error
}

func (f *fakeHISClient) Probe(context.Context) error { return f.probeErr }

func (f *fakeHISClient) FetchLastUpdated(context.Context, string) ([]byte, error) { return nil, nil }

func (f *fakeHISClient) ProbeAuditEndpoint(context.Context, string) (bool, error) { return false, nil }

func (f *fakeHISClient) FetchMetadataPage(_ context.Context, resource, _ string, page, _ int) (hisapi.MetadataPage, error) {
	if page > 1 {
		return hisapi.MetadataPage{}, nil
	}
	return hisapi.MetadataPage{Body: f.metadataPages[resource]}, nil
}

func (f *fakeHISClient) ImportMetadata(context.Context, string, string, string, bool, any) ([]byte, error) {
	if f.importErr != nil {
		return nil, f.importErr
	}
	return []byte(`{"response":{"importSummary":{"importCount":{"imported":1,"updated":0,"ignored":0,"deleted":0}}}}`), nil
}

func (f *fakeHISClient) FetchAggregateData(context.Context, string, []string, time.Time, time.Time) ([]byte, error) {
	return nil, nil
}
func (f *fakeHISClient) ImportAggregateData(context.Context, any) ([]byte, error) { return nil, nil }
func (f *fakeHISClient) FetchEvents(context.Context, string, string, time.Time, time.Time, int, int) ([]byte, bool, error) {
	return nil, false, nil
}
func (f *fakeHISClient) ImportEvents(context.Context, any) ([]byte, error) { return nil, nil }
func (f *fakeHISClient) FetchTrackerBundle(context.Context, string, []string, time.Time, time.Time, int, int) ([]byte, bool, error) {
	return nil, false, nil
}
func (f *fakeHISClient) ImportTrackerBundle(context.Context, any) ([]byte, error) { return nil, nil }
func (f *fakeHISClient) ImportTrackedEntityInstances(context.Context, any) ([]byte, error) {
	return nil, nil
}
func (f *fakeHISClient) ImportEnrollments(context.Context, any) ([]byte, error) { return nil, nil }

func setupStores(t *testing.T) (*memstore.Store, instance.Instance, instance.Instance, syncconfig.SyncConfiguration) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	src, err := st.CreateInstance(ctx, instance.Instance{Name: "source", BaseURL: "https://source.example", Roles: []instance.Role{instance.RoleSource}})
	require.NoError(t, err)
	dst, err := st.CreateInstance(ctx, instance.Instance{Name: "destination", BaseURL: "https://destination.example", Roles: []instance.Role{instance.RoleDestination}})
	require.NoError(t, err)
	cfg, err := st.CreateConfiguration(ctx, syncconfig.SyncConfiguration{
		Name: "users-only", SourceID: src.ID, DestinationID: dst.ID,
		SyncType: syncconfig.SyncMetadata, ImportStrategy: syncconfig.StrategyCreateAndUpdate,
		MergeMode: syncconfig.MergeReplace, ExecutionMode: syncconfig.ExecutionManual,
		Families: []string{"users"}, PageSize: 50,
	})
	require.NoError(t, err)
	return st, src, dst, cfg
}

func TestOrchestrator_RunFull_SingleFamilyMetadataCompletes(t *testing.T) {
	st, _, _, cfg := setupStores(t)

	userRoles := []byte(`{"userRoles":[{"id":"r1"},{"id":"r2"}],"pager":{"page":1,"pageCount":1}}`)
	users := []byte(`{"users":[{"id":"u1"},{"id":"u2"},{"id":"u3"}],"pager":{"page":1,"pageCount":1}}`)
	userGroups := []byte(`{"userGroups":[{"id":"g1"}],"pager":{"page":1,"pageCount":1}}`)

	source := &fakeHISClient{metadataPages: map[string][]byte{"userRoles": userRoles, "users": users, "userGroups": userGroups}}
	destination := &fakeHISClient{}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	orch := New(st, st, st, factory, nil)
	require.NoError(t, orch.RunFull(context.Background(), cfg.ID))

	jobs, err := st.ListJobsByConfiguration(context.Background(), cfg.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	j := jobs[0]
	require.Equal(t, job.StatusCompleted, j.Status, "log: %s", j.Log)
	require.False(t, j.StartedAt.After(j.CompletedAt), "started_at must not be after completed_at")
}

func TestOrchestrator_Run_SourceUnreachableFailsJob(t *testing.T) {
	st, _, _, cfg := setupStores(t)

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return &fakeHISClient{probeErr: context.DeadlineExceeded}
		}
		return &fakeHISClient{}
	}

	orch := New(st, st, st, factory, nil)
	require.Error(t, orch.RunFull(context.Background(), cfg.ID))

	jobs, err := st.ListJobsByConfiguration(context.Background(), cfg.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, job.StatusFailed, jobs[0].Status)
}

func TestOrchestrator_Run_MetadataImportErrorOnEveryResourceFailsJob(t *testing.T) {
	st, _, _, cfg := setupStores(t)

	source := &fakeHISClient{metadataPages: map[string][]byte{
		"userRoles":  []byte(`{"userRoles":[{"id":"r1"}],"pager":{"page":1,"pageCount":1}}`),
		"users":      []byte(`{"users":[{"id":"u1"}],"pager":{"page":1,"pageCount":1}}`),
		"userGroups": []byte(`{"userGroups":[{"id":"g1"}],"pager":{"page":1,"pageCount":1}}`),
	}}
	destination := &fakeHISClient{importErr: errImportFailed}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	orch := New(st, st, st, factory, nil)
	_ = orch.RunFull(context.Background(), cfg.ID)

	jobs, err := st.ListJobsByConfiguration(context.Background(), cfg.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, job.StatusFailed, jobs[0].Status, "every resource import errored")
}

var errImportFailed = &importError{"destination rejected payload"}

type importError struct{ msg string }

func (e *importError) Error() string { return e.msg }
