package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/his-sync/replicator/internal/domain/autosync"
)

type autoSyncRow struct {
	ID                 string `db:"id"`
	ConfigurationID    string `db:"configuration_id"`
	IsEnabled          bool   `db:"is_enabled"`
	CheckIntervalSec   int    `db:"check_interval_seconds"`
	DelayBeforeSyncSec int    `db:"delay_before_sync_seconds"`
	MonitorMetadata    bool   `db:"monitor_metadata"`
	MonitorData        bool   `db:"monitor_data"`
	IncludeResources   string `db:"include_resources"` // comma-separated
	ExcludeResources   string `db:"exclude_resources"` // comma-separated
	MaxSyncsPerHour    int    `db:"max_syncs_per_hour"`
	CooldownAfterErrorSec int `db:"cooldown_after_error_seconds"`
}

func (s *Store) UpsertAutoSync(ctx context.Context, settings autosync.Settings) (autosync.Settings, error) {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO auto_sync_settings
			(id, configuration_id, is_enabled, check_interval_seconds, delay_before_sync_seconds, monitor_metadata,
			 monitor_data, include_resources, exclude_resources, max_syncs_per_hour, cooldown_after_error_seconds)
		VALUES
			(:id, :configuration_id, :is_enabled, :check_interval_seconds, :delay_before_sync_seconds, :monitor_metadata,
			 :monitor_data, :include_resources, :exclude_resources, :max_syncs_per_hour, :cooldown_after_error_seconds)
		ON CONFLICT (configuration_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			check_interval_seconds = EXCLUDED.check_interval_seconds,
			delay_before_sync_seconds = EXCLUDED.delay_before_sync_seconds,
			monitor_metadata = EXCLUDED.monitor_metadata,
			monitor_data = EXCLUDED.monitor_data,
			include_resources = EXCLUDED.include_resources,
			exclude_resources = EXCLUDED.exclude_resources,
			max_syncs_per_hour = EXCLUDED.max_syncs_per_hour,
			cooldown_after_error_seconds = EXCLUDED.cooldown_after_error_seconds
	`, toAutoSyncRow(settings))
	if err != nil {
		return autosync.Settings{}, err
	}
	return settings, nil
}

func (s *Store) GetAutoSync(ctx context.Context, configID string) (autosync.Settings, error) {
	var row autoSyncRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM auto_sync_settings WHERE configuration_id = $1`, configID); err != nil {
		return autosync.Settings{}, err
	}
	return fromAutoSyncRow(row), nil
}

func (s *Store) ListEnabledAutoSync(ctx context.Context) ([]autosync.Settings, error) {
	var rows []autoSyncRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM auto_sync_settings WHERE is_enabled = true`); err != nil {
		return nil, err
	}
	out := make([]autosync.Settings, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromAutoSyncRow(r))
	}
	return out, nil
}

func (s *Store) DeleteAutoSync(ctx context.Context, configID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auto_sync_settings WHERE configuration_id = $1`, configID)
	return err
}

func toAutoSyncRow(s autosync.Settings) autoSyncRow {
	return autoSyncRow{
		ID: s.ID, ConfigurationID: s.ConfigurationID, IsEnabled: s.IsEnabled,
		CheckIntervalSec: int(s.CheckInterval.Seconds()), DelayBeforeSyncSec: int(s.DelayBeforeSync.Seconds()),
		MonitorMetadata: s.MonitorMetadata, MonitorData: s.MonitorData,
		IncludeResources: joinCSV(s.IncludeResources), ExcludeResources: joinCSV(s.ExcludeResources),
		MaxSyncsPerHour: s.MaxSyncsPerHour, CooldownAfterErrorSec: int(s.CooldownAfterError.Seconds()),
	}
}

func fromAutoSyncRow(r autoSyncRow) autosync.Settings {
	return autosync.Settings{
		ID: r.ID, ConfigurationID: r.ConfigurationID, IsEnabled: r.IsEnabled,
		CheckInterval: time.Duration(r.CheckIntervalSec) * time.Second,
		DelayBeforeSync: time.Duration(r.DelayBeforeSyncSec) * time.Second,
		MonitorMetadata: r.MonitorMetadata, MonitorData: r.MonitorData,
		IncludeResources: splitCSV(r.IncludeResources), ExcludeResources: splitCSV(r.ExcludeResources),
		MaxSyncsPerHour: r.MaxSyncsPerHour,
		CooldownAfterError: time.Duration(r.CooldownAfterErrorSec) * time.Second,
	}
}
