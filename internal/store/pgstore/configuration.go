package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/his-sync/replicator/internal/domain/syncconfig"
)

type configurationRow struct {
	ID             string     `db:"id"`
	Name           string     `db:"name"`
	SourceID       string     `db:"source_id"`
	DestinationID  string     `db:"destination_id"`
	SyncType       string     `db:"sync_type"`
	ImportStrategy string     `db:"import_strategy"`
	MergeMode      string     `db:"merge_mode"`
	ExecutionMode  string     `db:"execution_mode"`
	CronExpression string     `db:"cron_expression"`
	PageSize       int        `db:"page_size"`
	DateStart      *time.Time `db:"date_start"`
	DateEnd        *time.Time `db:"date_end"`
	Active         bool       `db:"active"`
	Families       string     `db:"families"` // comma-separated
	DataSets       string     `db:"data_sets"`
	Programs       string     `db:"programs"`
	OrgUnits       string     `db:"org_units"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (s *Store) CreateConfiguration(ctx context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.PageSize == 0 {
		cfg.PageSize = syncconfig.DefaultPageSize
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sync_configurations
			(id, name, source_id, destination_id, sync_type, import_strategy, merge_mode, execution_mode, cron_expression, page_size, date_start, date_end, active, families, data_sets, programs, org_units, created_at, updated_at)
		VALUES
			(:id, :name, :source_id, :destination_id, :sync_type, :import_strategy, :merge_mode, :execution_mode, :cron_expression, :page_size, :date_start, :date_end, :active, :families, :data_sets, :programs, :org_units, :created_at, :updated_at)
	`, toConfigurationRow(cfg))
	if err != nil {
		return syncconfig.SyncConfiguration{}, err
	}
	return cfg, nil
}

func (s *Store) UpdateConfiguration(ctx context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error) {
	existing, err := s.GetConfiguration(ctx, cfg.ID)
	if err != nil {
		return syncconfig.SyncConfiguration{}, err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE sync_configurations
		SET name = :name, source_id = :source_id, destination_id = :destination_id, sync_type = :sync_type,
		    import_strategy = :import_strategy, merge_mode = :merge_mode, execution_mode = :execution_mode,
		    cron_expression = :cron_expression, page_size = :page_size, date_start = :date_start,
		    date_end = :date_end, active = :active, families = :families, data_sets = :data_sets,
		    programs = :programs, org_units = :org_units, updated_at = :updated_at
		WHERE id = :id
	`, toConfigurationRow(cfg))
	if err != nil {
		return syncconfig.SyncConfiguration{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return syncconfig.SyncConfiguration{}, sql.ErrNoRows
	}
	return cfg, nil
}

func (s *Store) GetConfiguration(ctx context.Context, id string) (syncconfig.SyncConfiguration, error) {
	var row configurationRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sync_configurations WHERE id = $1`, id); err != nil {
		return syncconfig.SyncConfiguration{}, err
	}
	return fromConfigurationRow(row), nil
}

func (s *Store) ListConfigurations(ctx context.Context) ([]syncconfig.SyncConfiguration, error) {
	var rows []configurationRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM sync_configurations ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]syncconfig.SyncConfiguration, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromConfigurationRow(r))
	}
	return out, nil
}

func (s *Store) DeleteConfiguration(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_configurations WHERE id = $1`, id)
	return err
}

func toConfigurationRow(cfg syncconfig.SyncConfiguration) configurationRow {
	return configurationRow{
		ID: cfg.ID, Name: cfg.Name, SourceID: cfg.SourceID, DestinationID: cfg.DestinationID,
		SyncType: string(cfg.SyncType), ImportStrategy: string(cfg.ImportStrategy),
		MergeMode: string(cfg.MergeMode), ExecutionMode: string(cfg.ExecutionMode),
		CronExpression: cfg.CronExpression, PageSize: cfg.PageSize,
		DateStart: cfg.DateStart, DateEnd: cfg.DateEnd, Active: cfg.Active,
		Families: joinCSV(cfg.Families), DataSets: joinCSV(cfg.DataSets),
		Programs: joinCSV(cfg.Programs), OrgUnits: joinCSV(cfg.OrgUnits),
		CreatedAt: cfg.CreatedAt, UpdatedAt: cfg.UpdatedAt,
	}
}

func fromConfigurationRow(r configurationRow) syncconfig.SyncConfiguration {
	return syncconfig.SyncConfiguration{
		ID: r.ID, Name: r.Name, SourceID: r.SourceID, DestinationID: r.DestinationID,
		SyncType: syncconfig.SyncType(r.SyncType), ImportStrategy: syncconfig.ImportStrategy(r.ImportStrategy),
		MergeMode: syncconfig.MergeMode(r.MergeMode), ExecutionMode: syncconfig.ExecutionMode(r.ExecutionMode),
		CronExpression: r.CronExpression, PageSize: r.PageSize,
		DateStart: r.DateStart, DateEnd: r.DateEnd, Active: r.Active,
		Families: splitCSV(r.Families), DataSets: splitCSV(r.DataSets),
		Programs: splitCSV(r.Programs), OrgUnits: splitCSV(r.OrgUnits),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}
