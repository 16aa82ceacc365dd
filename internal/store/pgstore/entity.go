package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/his-sync/replicator/internal/domain/entity"
)

type selectedEntityRow struct {
	ID               string       `db:"id"`
	ConfigurationID  string       `db:"configuration_id"`
	EntityType       string       `db:"entity_type"`
	DHIS2UID         string       `db:"dhis2_uid"`
	Name             string       `db:"name"`
	DisplayName      string       `db:"display_name"`
	IsSelected       bool         `db:"is_selected"`
	ImportOrder      int          `db:"import_order"`
	LastSynchronized sql.NullTime `db:"last_synchronized"`
	SyncStatus       string       `db:"sync_status"`
	SyncErrorMessage string       `db:"sync_error_message"`
	FieldMapping     string       `db:"field_mapping"` // JSON object
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func (s *Store) UpsertSelectedEntity(ctx context.Context, e entity.SelectedEntity) (entity.SelectedEntity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.UpdatedAt = now
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO selected_entities
			(id, configuration_id, entity_type, dhis2_uid, name, display_name, is_selected, import_order,
			 last_synchronized, sync_status, sync_error_message, field_mapping, created_at, updated_at)
		VALUES
			(:id, :configuration_id, :entity_type, :dhis2_uid, :name, :display_name, :is_selected, :import_order,
			 :last_synchronized, :sync_status, :sync_error_message, :field_mapping, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			entity_type = EXCLUDED.entity_type,
			dhis2_uid = EXCLUDED.dhis2_uid,
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			is_selected = EXCLUDED.is_selected,
			import_order = EXCLUDED.import_order,
			last_synchronized = EXCLUDED.last_synchronized,
			sync_status = EXCLUDED.sync_status,
			sync_error_message = EXCLUDED.sync_error_message,
			field_mapping = EXCLUDED.field_mapping,
			updated_at = EXCLUDED.updated_at
	`, toSelectedEntityRow(e))
	if err != nil {
		return entity.SelectedEntity{}, err
	}
	return e, nil
}

func (s *Store) ListSelectedEntities(ctx context.Context, configID string) ([]entity.SelectedEntity, error) {
	var rows []selectedEntityRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM selected_entities WHERE configuration_id = $1 ORDER BY import_order
	`, configID); err != nil {
		return nil, err
	}
	out := make([]entity.SelectedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromSelectedEntityRow(r))
	}
	return out, nil
}

func (s *Store) DeleteSelectedEntity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM selected_entities WHERE id = $1`, id)
	return err
}

func toSelectedEntityRow(e entity.SelectedEntity) selectedEntityRow {
	mapping, _ := json.Marshal(e.FieldMapping)
	var lastSync sql.NullTime
	if !e.LastSynchronized.IsZero() {
		lastSync = sql.NullTime{Time: e.LastSynchronized, Valid: true}
	}
	return selectedEntityRow{
		ID: e.ID, ConfigurationID: e.ConfigurationID, EntityType: e.EntityType,
		DHIS2UID: e.DHIS2UID, Name: e.Name, DisplayName: e.DisplayName,
		IsSelected: e.IsSelected, ImportOrder: e.ImportOrder,
		LastSynchronized: lastSync, SyncStatus: string(e.SyncStatus),
		SyncErrorMessage: e.SyncErrorMessage, FieldMapping: string(mapping),
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func fromSelectedEntityRow(r selectedEntityRow) entity.SelectedEntity {
	var mapping map[string]string
	_ = json.Unmarshal([]byte(r.FieldMapping), &mapping)
	var lastSync time.Time
	if r.LastSynchronized.Valid {
		lastSync = r.LastSynchronized.Time
	}
	return entity.SelectedEntity{
		ID: r.ID, ConfigurationID: r.ConfigurationID, EntityType: r.EntityType,
		DHIS2UID: r.DHIS2UID, Name: r.Name, DisplayName: r.DisplayName,
		IsSelected: r.IsSelected, ImportOrder: r.ImportOrder,
		LastSynchronized: lastSync, SyncStatus: entity.SyncStatus(r.SyncStatus),
		SyncErrorMessage: r.SyncErrorMessage, FieldMapping: mapping,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type entityVersionInfoRow struct {
	ID                 string    `db:"id"`
	DHIS2Version       string    `db:"dhis2_version"`
	EntityType         string    `db:"entity_type"`
	APIEndpoint        string    `db:"api_endpoint"`
	APIPath            string    `db:"api_path"`
	SupportedFields    string    `db:"supported_fields"`  // JSON array
	RequiredFields     string    `db:"required_fields"`   // JSON array
	DeprecatedFields   string    `db:"deprecated_fields"` // JSON array
	NewFields          string    `db:"new_fields"`        // JSON array
	MaxPageSize        int       `db:"max_page_size"`
	SupportsPaging     bool      `db:"supports_paging"`
	SupportsBulkImport bool      `db:"supports_bulk_import"`
	SupportsUpsert     bool      `db:"supports_upsert"`
	ImportStrategy     string    `db:"import_strategy"`
	IsActive           bool      `db:"is_active"`
	Notes              string    `db:"notes"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (s *Store) UpsertEntityVersionInfo(ctx context.Context, v entity.EntityVersionInfo) (entity.EntityVersionInfo, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.UpdatedAt = now
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO entity_version_info
			(id, dhis2_version, entity_type, api_endpoint, api_path, supported_fields, required_fields,
			 deprecated_fields, new_fields, max_page_size, supports_paging, supports_bulk_import,
			 supports_upsert, import_strategy, is_active, notes, created_at, updated_at)
		VALUES
			(:id, :dhis2_version, :entity_type, :api_endpoint, :api_path, :supported_fields, :required_fields,
			 :deprecated_fields, :new_fields, :max_page_size, :supports_paging, :supports_bulk_import,
			 :supports_upsert, :import_strategy, :is_active, :notes, :created_at, :updated_at)
		ON CONFLICT (dhis2_version, entity_type) DO UPDATE SET
			api_endpoint = EXCLUDED.api_endpoint,
			api_path = EXCLUDED.api_path,
			supported_fields = EXCLUDED.supported_fields,
			required_fields = EXCLUDED.required_fields,
			deprecated_fields = EXCLUDED.deprecated_fields,
			new_fields = EXCLUDED.new_fields,
			max_page_size = EXCLUDED.max_page_size,
			supports_paging = EXCLUDED.supports_paging,
			supports_bulk_import = EXCLUDED.supports_bulk_import,
			supports_upsert = EXCLUDED.supports_upsert,
			import_strategy = EXCLUDED.import_strategy,
			is_active = EXCLUDED.is_active,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`, toEntityVersionInfoRow(v))
	if err != nil {
		return entity.EntityVersionInfo{}, err
	}
	return v, nil
}

func (s *Store) GetEntityVersionInfo(ctx context.Context, dhis2Version, entityType string) (entity.EntityVersionInfo, error) {
	var row entityVersionInfoRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT * FROM entity_version_info WHERE dhis2_version = $1 AND entity_type = $2
	`, dhis2Version, entityType); err != nil {
		return entity.EntityVersionInfo{}, err
	}
	return fromEntityVersionInfoRow(row), nil
}

func toEntityVersionInfoRow(v entity.EntityVersionInfo) entityVersionInfoRow {
	supported, _ := json.Marshal(v.SupportedFields)
	required, _ := json.Marshal(v.RequiredFields)
	deprecated, _ := json.Marshal(v.DeprecatedFields)
	newFields, _ := json.Marshal(v.NewFields)
	return entityVersionInfoRow{
		ID: v.ID, DHIS2Version: v.DHIS2Version, EntityType: v.EntityType,
		APIEndpoint: v.APIEndpoint, APIPath: v.APIPath,
		SupportedFields: string(supported), RequiredFields: string(required),
		DeprecatedFields: string(deprecated), NewFields: string(newFields),
		MaxPageSize: v.MaxPageSize, SupportsPaging: v.SupportsPaging,
		SupportsBulkImport: v.SupportsBulkImport, SupportsUpsert: v.SupportsUpsert,
		ImportStrategy: v.ImportStrategy, IsActive: v.IsActive, Notes: v.Notes,
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

func fromEntityVersionInfoRow(r entityVersionInfoRow) entity.EntityVersionInfo {
	var supported, required, deprecated, newFields []string
	_ = json.Unmarshal([]byte(r.SupportedFields), &supported)
	_ = json.Unmarshal([]byte(r.RequiredFields), &required)
	_ = json.Unmarshal([]byte(r.DeprecatedFields), &deprecated)
	_ = json.Unmarshal([]byte(r.NewFields), &newFields)
	return entity.EntityVersionInfo{
		ID: r.ID, DHIS2Version: r.DHIS2Version, EntityType: r.EntityType,
		APIEndpoint: r.APIEndpoint, APIPath: r.APIPath,
		SupportedFields: supported, RequiredFields: required,
		DeprecatedFields: deprecated, NewFields: newFields,
		MaxPageSize: r.MaxPageSize, SupportsPaging: r.SupportsPaging,
		SupportsBulkImport: r.SupportsBulkImport, SupportsUpsert: r.SupportsUpsert,
		ImportStrategy: r.ImportStrategy, IsActive: r.IsActive, Notes: r.Notes,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}
