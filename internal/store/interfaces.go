// Package store defines the persistence contracts the engine depends on,
// and provides an in-memory implementation (memstore) for tests and a
// Postgres implementation (pgstore) for production.
package store

import (
	"context"

	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/entity"
	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
)

// InstanceStore persists HIS instance records.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst instance.Instance) (instance.Instance, error)
	UpdateInstance(ctx context.Context, inst instance.Instance) (instance.Instance, error)
	GetInstance(ctx context.Context, id string) (instance.Instance, error)
	ListInstances(ctx context.Context) ([]instance.Instance, error)
	DeleteInstance(ctx context.Context, id string) error
}

// ConfigurationStore persists replication configurations.
type ConfigurationStore interface {
	CreateConfiguration(ctx context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error)
	UpdateConfiguration(ctx context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error)
	GetConfiguration(ctx context.Context, id string) (syncconfig.SyncConfiguration, error)
	ListConfigurations(ctx context.Context) ([]syncconfig.SyncConfiguration, error)
	DeleteConfiguration(ctx context.Context, id string) error
}

// JobStore persists Jobs and enforces the at-most-one-active-Job-per-
// configuration invariant (spec.md §5).
type JobStore interface {
	CreateJob(ctx context.Context, j job.Job) (job.Job, error)
	UpdateJob(ctx context.Context, j job.Job) (job.Job, error)
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListJobsByConfiguration(ctx context.Context, configID string, limit int) ([]job.Job, error)
	// HasActiveJob reports whether configID has a PENDING/RUNNING Job.
	HasActiveJob(ctx context.Context, configID string) (bool, error)
	// ListRetryable returns FAILED jobs eligible for retry whose
	// next_retry_at has elapsed.
	ListRetryable(ctx context.Context) ([]job.Job, error)
}

// AutoSyncStore persists per-configuration continuous-replication settings.
type AutoSyncStore interface {
	UpsertAutoSync(ctx context.Context, s autosync.Settings) (autosync.Settings, error)
	GetAutoSync(ctx context.Context, configID string) (autosync.Settings, error)
	ListEnabledAutoSync(ctx context.Context) ([]autosync.Settings, error)
	DeleteAutoSync(ctx context.Context, configID string) error
}

// EntityStore persists per-configuration resource selections and the
// per-destination-version field metadata resolved for them.
type EntityStore interface {
	UpsertSelectedEntity(ctx context.Context, e entity.SelectedEntity) (entity.SelectedEntity, error)
	ListSelectedEntities(ctx context.Context, configID string) ([]entity.SelectedEntity, error)
	DeleteSelectedEntity(ctx context.Context, id string) error

	UpsertEntityVersionInfo(ctx context.Context, v entity.EntityVersionInfo) (entity.EntityVersionInfo, error)
	// GetEntityVersionInfo returns the field metadata recorded for
	// entityType on dhis2Version, or an error if none has been recorded.
	GetEntityVersionInfo(ctx context.Context, dhis2Version, entityType string) (entity.EntityVersionInfo, error)
}
