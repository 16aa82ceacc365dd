package app

import (
	"context"

	"github.com/his-sync/replicator/internal/domain/syncconfig"
	"github.com/his-sync/replicator/internal/lifecycle"
	"github.com/his-sync/replicator/internal/scheduler"
	"github.com/his-sync/replicator/internal/store"
	"github.com/his-sync/replicator/pkg/logger"
)

// lifecycleTicker adapts *lifecycle.Manager to scheduler.Ticker, logging the
// Decision since Tick itself returns nothing (spec.md §4.7).
type lifecycleTicker struct {
	manager *lifecycle.Manager
	log     *logger.Logger
}

func newLifecycleTicker(manager *lifecycle.Manager, log *logger.Logger) *lifecycleTicker {
	return &lifecycleTicker{manager: manager, log: log}
}

func (t *lifecycleTicker) Tick(ctx context.Context, configID string) {
	decision := t.manager.Tick(ctx, configID)
	entry := t.log.WithField("configuration_id", configID)

	switch {
	case decision.Err != nil:
		entry.WithError(decision.Err).Warn("monitor tick sync failed")
	case decision.CannotSync != "":
		entry.WithField("reason", string(decision.CannotSync)).Debug("monitor tick skipped")
	case decision.NoChanges:
		entry.Debug("monitor tick found no changes")
	case decision.Ran:
		entry.Info("monitor tick ran a sync")
	}
}

// configScheduleLookup adapts the configuration and auto-sync stores to
// scheduler.ConfigLookup.
type configScheduleLookup struct {
	configs  store.ConfigurationStore
	autoSync store.AutoSyncStore
}

func newConfigScheduleLookup(configs store.ConfigurationStore, autoSync store.AutoSyncStore) *configScheduleLookup {
	return &configScheduleLookup{configs: configs, autoSync: autoSync}
}

func (l *configScheduleLookup) Scheduling(configID string) (scheduler.ConfigSchedule, error) {
	cfg, err := l.configs.GetConfiguration(context.Background(), configID)
	if err != nil {
		return scheduler.ConfigSchedule{}, err
	}

	schedule := scheduler.ConfigSchedule{
		Automatic:      cfg.ExecutionMode == syncconfig.ExecutionAutomatic,
		Active:         cfg.Active,
		CronMode:       cfg.ExecutionMode == syncconfig.ExecutionScheduled,
		CronExpression: cfg.CronExpression,
	}

	if settings, err := l.autoSync.GetAutoSync(context.Background(), configID); err == nil {
		schedule.CheckInterval = settings.CheckInterval
		schedule.DelayBeforeSync = settings.DelayBeforeSync
	}
	return schedule, nil
}
