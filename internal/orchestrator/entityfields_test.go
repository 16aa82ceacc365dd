package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/his-sync/replicator/internal/domain/entity"
	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/hisapi"
)

// recordingHISClient wraps fakeHISClient and records the "fields" argument
// every FetchMetadataPage call was made with, keyed by resource.
type recordingHISClient struct {
	fakeHISClient
	requestedFields map[string]string
}

func (f *recordingHISClient) FetchMetadataPage(ctx context.Context, resource, fields string, page, pageSize int) (hisapi.MetadataPage, error) {
	if f.requestedFields == nil {
		f.requestedFields = make(map[string]string)
	}
	f.requestedFields[resource] = fields
	return f.fakeHISClient.FetchMetadataPage(ctx, resource, fields, page, pageSize)
}

func TestOrchestrator_MetadataPhase_UsesEntityVersionFieldsOverride(t *testing.T) {
	st, _, dst, cfg := setupStores(t)
	ctx := context.Background()

	dst.ServerVersion = "2.38"
	_, err := st.UpdateInstance(ctx, dst)
	require.NoError(t, err)

	_, err = st.UpsertEntityVersionInfo(ctx, entity.EntityVersionInfo{
		DHIS2Version: "2.38", EntityType: "users", SupportedFields: []string{"id", "name"},
	})
	require.NoError(t, err)

	source := &recordingHISClient{fakeHISClient: fakeHISClient{metadataPages: map[string][]byte{
		"userRoles":  []byte(`{"userRoles":[],"pager":{"page":1,"pageCount":1}}`),
		"users":      []byte(`{"users":[{"id":"u1"}],"pager":{"page":1,"pageCount":1}}`),
		"userGroups": []byte(`{"userGroups":[],"pager":{"page":1,"pageCount":1}}`),
	}}}
	destination := &fakeHISClient{}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	orch := New(st, st, st, factory, nil)
	orch.Entities = st
	require.NoError(t, orch.RunFull(ctx, cfg.ID))

	require.Equal(t, "id,name", source.requestedFields["users"])
}

func TestOrchestrator_MetadataPhase_NoOverrideWithoutEntities(t *testing.T) {
	st, _, _, cfg := setupStores(t)
	ctx := context.Background()

	source := &recordingHISClient{fakeHISClient: fakeHISClient{metadataPages: map[string][]byte{
		"userRoles":  []byte(`{"userRoles":[],"pager":{"page":1,"pageCount":1}}`),
		"users":      []byte(`{"users":[{"id":"u1"}],"pager":{"page":1,"pageCount":1}}`),
		"userGroups": []byte(`{"userGroups":[],"pager":{"page":1,"pageCount":1}}`),
	}}}
	destination := &fakeHISClient{}

	factory := func(inst instance.Instance) HISClient {
		if inst.HasRole(instance.RoleSource) {
			return source
		}
		return destination
	}

	orch := New(st, st, st, factory, nil)
	require.NoError(t, orch.RunFull(ctx, cfg.ID))

	require.NotEqual(t, "id,name", source.requestedFields["users"])
}
