package memstore

import (
	"context"
	"testing"

	"github.com/his-sync/replicator/internal/domain/entity"
)

func TestStoreUpsertSelectedEntityAssignsIDAndTimestamps(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.UpsertSelectedEntity(ctx, entity.SelectedEntity{
		ConfigurationID: "cfg-1", EntityType: "dataElements", IsSelected: true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be stamped")
	}

	list, err := st.ListSelectedEntities(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 selected entity, got %d", len(list))
	}
}

func TestStoreUpsertSelectedEntityPreservesCreatedAtOnUpdate(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.UpsertSelectedEntity(ctx, entity.SelectedEntity{ConfigurationID: "cfg-1", EntityType: "dataElements"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	updated, err := st.UpsertSelectedEntity(ctx, entity.SelectedEntity{
		ID: created.ID, ConfigurationID: "cfg-1", EntityType: "dataElements", SyncStatus: entity.StatusSuccess,
	})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected CreatedAt to be preserved across update")
	}
	if updated.SyncStatus != entity.StatusSuccess {
		t.Fatalf("expected updated sync status to persist")
	}
}

func TestStoreDeleteSelectedEntityRemovesIt(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.UpsertSelectedEntity(ctx, entity.SelectedEntity{ConfigurationID: "cfg-1", EntityType: "dataElements"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.DeleteSelectedEntity(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := st.ListSelectedEntities(ctx, "cfg-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no selected entities after delete, got %d", len(list))
	}
}

func TestStoreEntityVersionInfoRoundTripsByVersionAndType(t *testing.T) {
	st := New()
	ctx := context.Background()

	if _, err := st.UpsertEntityVersionInfo(ctx, entity.EntityVersionInfo{
		DHIS2Version: "2.38", EntityType: "dataElements", SupportedFields: []string{"id", "name"},
	}); err != nil {
		t.Fatalf("upsert version info: %v", err)
	}

	got, err := st.GetEntityVersionInfo(ctx, "2.38", "dataElements")
	if err != nil {
		t.Fatalf("get version info: %v", err)
	}
	if got.FieldsSelection() != "id,name" {
		t.Fatalf("expected fields selection id,name, got %q", got.FieldsSelection())
	}
}

func TestStoreGetEntityVersionInfoNotFound(t *testing.T) {
	st := New()
	if _, err := st.GetEntityVersionInfo(context.Background(), "2.40", "dataElements"); err == nil {
		t.Fatalf("expected an error for an unrecorded version/type pair")
	}
}
