package app

import (
	"context"

	"github.com/his-sync/replicator/internal/metrics"
	"github.com/his-sync/replicator/internal/scheduler"
	"github.com/his-sync/replicator/internal/store"
	"github.com/his-sync/replicator/pkg/logger"
)

// schedulerService is the system.Service that starts a monitor task for
// every enabled auto-sync configuration at process startup, and stops them
// all at shutdown (spec.md §4.7 "cleanup" runs this same reconciliation on
// a schedule; here it runs once at boot).
type schedulerService struct {
	scheduler *scheduler.Scheduler
	autoSync  store.AutoSyncStore
	log       *logger.Logger

	// Metrics is optional; nil disables metric recording.
	Metrics *metrics.Metrics

	started []string
}

func newSchedulerService(sched *scheduler.Scheduler, autoSync store.AutoSyncStore, log *logger.Logger) *schedulerService {
	return &schedulerService{scheduler: sched, autoSync: autoSync, log: log}
}

func (s *schedulerService) Name() string { return "scheduler" }

func (s *schedulerService) Start(ctx context.Context) error {
	enabled, err := s.autoSync.ListEnabledAutoSync(ctx)
	if err != nil {
		return err
	}
	for _, settings := range enabled {
		if err := s.scheduler.Start(ctx, settings.ConfigurationID); err != nil {
			s.log.WithField("configuration_id", settings.ConfigurationID).WithError(err).Warn("scheduler: could not start monitor task at boot")
			continue
		}
		s.started = append(s.started, settings.ConfigurationID)
	}
	if s.Metrics != nil {
		s.Metrics.MonitorTasksRunning.Set(float64(len(s.started)))
	}
	return nil
}

func (s *schedulerService) Stop(context.Context) error {
	for _, configID := range s.started {
		if err := s.scheduler.Stop(configID); err != nil {
			s.log.WithField("configuration_id", configID).WithError(err).Warn("scheduler: monitor task did not stop cleanly")
		}
	}
	if s.Metrics != nil {
		s.Metrics.MonitorTasksRunning.Set(0)
	}
	return nil
}
