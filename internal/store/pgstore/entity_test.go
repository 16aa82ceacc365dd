package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/his-sync/replicator/internal/domain/entity"
)

func TestStoreUpsertSelectedEntityInsertsOneRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO selected_entities").WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := store.UpsertSelectedEntity(context.Background(), entity.SelectedEntity{
		ConfigurationID: "cfg-1", EntityType: "dataElements", IsSelected: true,
	})
	if err != nil {
		t.Fatalf("upsert selected entity: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreListSelectedEntitiesReturnsAllRows(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "configuration_id", "entity_type", "dhis2_uid", "name", "display_name",
		"is_selected", "import_order", "last_synchronized", "sync_status", "sync_error_message",
		"field_mapping", "created_at", "updated_at",
	}).AddRow("ent-1", "cfg-1", "dataElements", "", "", "", true, 600, nil, "pending", "", "{}", now, now)

	mock.ExpectQuery("SELECT \\* FROM selected_entities WHERE configuration_id = \\$1 ORDER BY import_order").
		WithArgs("cfg-1").
		WillReturnRows(rows)

	got, err := store.ListSelectedEntities(context.Background(), "cfg-1")
	if err != nil {
		t.Fatalf("list selected entities: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(got))
	}
	if got[0].EntityType != "dataElements" {
		t.Fatalf("expected entity type dataElements, got %q", got[0].EntityType)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDeleteSelectedEntityExecutesDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM selected_entities WHERE id = \\$1").
		WithArgs("ent-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteSelectedEntity(context.Background(), "ent-1"); err != nil {
		t.Fatalf("delete selected entity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreUpsertEntityVersionInfoInsertsOneRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO entity_version_info").WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := store.UpsertEntityVersionInfo(context.Background(), entity.EntityVersionInfo{
		DHIS2Version: "2.38", EntityType: "dataElements", SupportedFields: []string{"id", "name"},
	})
	if err != nil {
		t.Fatalf("upsert entity version info: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreGetEntityVersionInfoScansRow(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "dhis2_version", "entity_type", "api_endpoint", "api_path",
		"supported_fields", "required_fields", "deprecated_fields", "new_fields",
		"max_page_size", "supports_paging", "supports_bulk_import", "supports_upsert",
		"import_strategy", "is_active", "notes", "created_at", "updated_at",
	}).AddRow("ver-1", "2.38", "dataElements", "", "", `["id","name"]`, "[]", "[]", "[]",
		200, true, true, true, "", true, "", now, now)

	mock.ExpectQuery("SELECT \\* FROM entity_version_info WHERE dhis2_version = \\$1 AND entity_type = \\$2").
		WithArgs("2.38", "dataElements").
		WillReturnRows(rows)

	got, err := store.GetEntityVersionInfo(context.Background(), "2.38", "dataElements")
	if err != nil {
		t.Fatalf("get entity version info: %v", err)
	}
	if got.FieldsSelection() != "id,name" {
		t.Fatalf("expected fields selection id,name, got %q", got.FieldsSelection())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
