// Package memstore is a thread-safe in-memory implementation of the store
// interfaces, intended for tests and prototyping.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/his-sync/replicator/internal/domain/autosync"
	"github.com/his-sync/replicator/internal/domain/entity"
	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
	"github.com/his-sync/replicator/internal/store"
)

// Store is a thread-safe in-memory persistence layer implementing every
// store interface.
type Store struct {
	mu             sync.RWMutex
	instances      map[string]instance.Instance
	configurations map[string]syncconfig.SyncConfiguration
	jobs           map[string]job.Job
	autoSync       map[string]autosync.Settings // keyed by configuration id
	entities       map[string]entity.SelectedEntity
	entityVersions map[string]entity.EntityVersionInfo // keyed by "version:entityType"
}

var (
	_ store.InstanceStore      = (*Store)(nil)
	_ store.ConfigurationStore = (*Store)(nil)
	_ store.JobStore           = (*Store)(nil)
	_ store.AutoSyncStore      = (*Store)(nil)
	_ store.EntityStore        = (*Store)(nil)
)

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		instances:      make(map[string]instance.Instance),
		configurations: make(map[string]syncconfig.SyncConfiguration),
		jobs:           make(map[string]job.Job),
		autoSync:       make(map[string]autosync.Settings),
		entities:       make(map[string]entity.SelectedEntity),
		entityVersions: make(map[string]entity.EntityVersionInfo),
	}
}

func entityVersionKey(dhis2Version, entityType string) string {
	return dhis2Version + ":" + entityType
}

// Instance store -------------------------------------------------------

func (s *Store) CreateInstance(_ context.Context, inst instance.Instance) (instance.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.ID == "" {
		inst.ID = uuid.NewString()
	} else if _, exists := s.instances[inst.ID]; exists {
		return instance.Instance{}, fmt.Errorf("instance %s already exists", inst.ID)
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.BaseURL = instance.NormalizeBaseURL(inst.BaseURL)
	s.instances[inst.ID] = inst
	return inst, nil
}

func (s *Store) UpdateInstance(_ context.Context, inst instance.Instance) (instance.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.instances[inst.ID]
	if !ok {
		return instance.Instance{}, fmt.Errorf("instance %s not found", inst.ID)
	}
	inst.CreatedAt = original.CreatedAt
	inst.UpdatedAt = time.Now().UTC()
	inst.BaseURL = instance.NormalizeBaseURL(inst.BaseURL)
	s.instances[inst.ID] = inst
	return inst, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (instance.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return instance.Instance{}, fmt.Errorf("instance %s not found", id)
	}
	return inst, nil
}

func (s *Store) ListInstances(_ context.Context) ([]instance.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]instance.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	return out, nil
}

func (s *Store) DeleteInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, id)
	return nil
}

// Configuration store ---------------------------------------------------

func (s *Store) CreateConfiguration(_ context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	} else if _, exists := s.configurations[cfg.ID]; exists {
		return syncconfig.SyncConfiguration{}, fmt.Errorf("configuration %s already exists", cfg.ID)
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.PageSize == 0 {
		cfg.PageSize = syncconfig.DefaultPageSize
	}
	s.configurations[cfg.ID] = cfg
	return cfg, nil
}

func (s *Store) UpdateConfiguration(_ context.Context, cfg syncconfig.SyncConfiguration) (syncconfig.SyncConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.configurations[cfg.ID]
	if !ok {
		return syncconfig.SyncConfiguration{}, fmt.Errorf("configuration %s not found", cfg.ID)
	}
	cfg.CreatedAt = original.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	s.configurations[cfg.ID] = cfg
	return cfg, nil
}

func (s *Store) GetConfiguration(_ context.Context, id string) (syncconfig.SyncConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configurations[id]
	if !ok {
		return syncconfig.SyncConfiguration{}, fmt.Errorf("configuration %s not found", id)
	}
	return cfg, nil
}

func (s *Store) ListConfigurations(_ context.Context) ([]syncconfig.SyncConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]syncconfig.SyncConfiguration, 0, len(s.configurations))
	for _, cfg := range s.configurations {
		out = append(out, cfg)
	}
	return out, nil
}

func (s *Store) DeleteConfiguration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configurations, id)
	return nil
}

// Job store ---------------------------------------------------------------

func (s *Store) CreateJob(_ context.Context, j job.Job) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		j.ID = uuid.NewString()
	} else if _, exists := s.jobs[j.ID]; exists {
		return job.Job{}, fmt.Errorf("job %s already exists", j.ID)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) UpdateJob(_ context.Context, j job.Job) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; !ok {
		return job.Job{}, fmt.Errorf("job %s not found", j.ID)
	}
	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) GetJob(_ context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, fmt.Errorf("job %s not found", id)
	}
	return j, nil
}

func (s *Store) ListJobsByConfiguration(_ context.Context, configID string, limit int) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []job.Job
	for _, j := range s.jobs {
		if j.ConfigurationID == configID {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HasActiveJob(_ context.Context, configID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ConfigurationID == configID && j.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListRetryable(_ context.Context) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	var out []job.Job
	for _, j := range s.jobs {
		if j.EligibleForRetry() && (j.NextRetryAt.IsZero() || !j.NextRetryAt.After(now)) {
			out = append(out, j)
		}
	}
	return out, nil
}

// AutoSync store ------------------------------------------------------------

func (s *Store) UpsertAutoSync(_ context.Context, settings autosync.Settings) (autosync.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.ID == "" {
		if existing, ok := s.autoSync[settings.ConfigurationID]; ok {
			settings.ID = existing.ID
		} else {
			settings.ID = uuid.NewString()
		}
	}
	s.autoSync[settings.ConfigurationID] = settings
	return settings, nil
}

func (s *Store) GetAutoSync(_ context.Context, configID string) (autosync.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.autoSync[configID]
	if !ok {
		return autosync.Settings{}, fmt.Errorf("auto-sync settings for %s not found", configID)
	}
	return settings, nil
}

func (s *Store) ListEnabledAutoSync(_ context.Context) ([]autosync.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []autosync.Settings
	for _, settings := range s.autoSync {
		if settings.IsEnabled {
			out = append(out, settings)
		}
	}
	return out, nil
}

func (s *Store) DeleteAutoSync(_ context.Context, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.autoSync, configID)
	return nil
}

// Entity store ---------------------------------------------------------

func (s *Store) UpsertSelectedEntity(_ context.Context, e entity.SelectedEntity) (entity.SelectedEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	} else if existing, ok := s.entities[e.ID]; ok {
		e.CreatedAt = existing.CreatedAt
	} else {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.entities[e.ID] = e
	return e, nil
}

func (s *Store) ListSelectedEntities(_ context.Context, configID string) ([]entity.SelectedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.SelectedEntity
	for _, e := range s.entities {
		if e.ConfigurationID == configID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) DeleteSelectedEntity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
	return nil
}

func (s *Store) UpsertEntityVersionInfo(_ context.Context, v entity.EntityVersionInfo) (entity.EntityVersionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityVersionKey(v.DHIS2Version, v.EntityType)
	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if existing, ok := s.entityVersions[key]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	s.entityVersions[key] = v
	return v, nil
}

func (s *Store) GetEntityVersionInfo(_ context.Context, dhis2Version, entityType string) (entity.EntityVersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entityVersions[entityVersionKey(dhis2Version, entityType)]
	if !ok {
		return entity.EntityVersionInfo{}, fmt.Errorf("entity version info for %s/%s not found", dhis2Version, entityType)
	}
	return v, nil
}
