// Package scheduler is the process-wide singleton monitor-task registry
// described in spec.md §4.7: one running task per auto-sync configuration,
// start/stop/restart/cleanup, and both ticker-driven ("automatic") and
// cron-driven ("scheduled") execution modes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/his-sync/replicator/pkg/logger"
)

// stopJoinDeadline bounds how long Stop waits for a monitor task to exit
// (spec.md §4.7 "joins with a 10s deadline").
const stopJoinDeadline = 10 * time.Second

// Ticker invokes the Lifecycle Manager for one configuration. Implemented
// by an adapter over *lifecycle.Manager in the application wiring layer.
type Ticker interface {
	Tick(ctx context.Context, configID string)
}

// ConfigLookup resolves a configuration's scheduling parameters without
// this package depending on the syncconfig/autosync domain packages
// directly.
type ConfigLookup interface {
	// Scheduling returns whether configID is in automatic mode and active,
	// its check interval, delay before the first sync, and (for scheduled
	// mode) its cron expression.
	Scheduling(configID string) (ConfigSchedule, error)
}

// ConfigSchedule is the subset of a SyncConfiguration+Settings the
// Scheduler needs.
type ConfigSchedule struct {
	Automatic       bool
	Active          bool
	CronMode        bool
	CronExpression  string
	CheckInterval   time.Duration
	DelayBeforeSync time.Duration
}

type task struct {
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Scheduler is the process-wide singleton registry (spec.md §4.7). Create
// exactly one per process via New and share it.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	lookup ConfigLookup
	ticker Ticker
	log    *logger.Logger
}

// New constructs a Scheduler. Each scheduled-mode monitor task builds and
// starts its own cron runner when the task starts.
func New(lookup ConfigLookup, ticker Ticker, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	return &Scheduler{
		tasks:  make(map[string]*task),
		lookup: lookup,
		ticker: ticker,
		log:    log,
	}
}

// Start validates configID is in automatic or scheduled mode and active,
// refuses if a live task already exists, and spawns its monitor task.
func (s *Scheduler) Start(ctx context.Context, configID string) error {
	schedule, err := s.lookup.Scheduling(configID)
	if err != nil {
		return fmt.Errorf("scheduler: resolve schedule for %s: %w", configID, err)
	}
	if !schedule.Automatic && !schedule.CronMode {
		return fmt.Errorf("scheduler: configuration %s is not in automatic or scheduled mode", configID)
	}
	if !schedule.Active {
		return fmt.Errorf("scheduler: configuration %s is not active", configID)
	}

	s.mu.Lock()
	if existing, ok := s.tasks[configID]; ok && existing.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: monitor task already running for %s", configID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{}), running: true}
	s.tasks[configID] = t
	s.mu.Unlock()

	go func() {
		if schedule.CronMode {
			s.runCron(runCtx, t, configID, schedule)
		} else {
			s.runTicker(runCtx, t, configID, schedule)
		}
		// A task that exits on its own (e.g. an invalid cron expression) is
		// no longer live, so IsRunning reports false and Cleanup restarts it.
		s.mu.Lock()
		t.running = false
		s.mu.Unlock()
	}()

	s.log.WithField("configuration_id", configID).Info("scheduler started monitor task")
	return nil
}

func (s *Scheduler) runTicker(ctx context.Context, t *task, configID string, schedule ConfigSchedule) {
	defer close(t.done)

	if schedule.DelayBeforeSync > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(schedule.DelayBeforeSync):
		}
	}

	interval := schedule.CheckInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ticker.Tick(ctx, configID)
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context, t *task, configID string, schedule ConfigSchedule) {
	defer close(t.done)

	runner := cron.New()
	_, err := runner.AddFunc(schedule.CronExpression, func() {
		s.ticker.Tick(ctx, configID)
	})
	if err != nil {
		s.log.WithField("configuration_id", configID).WithError(err).Warn("invalid cron expression; monitor task exiting")
		return
	}
	runner.Start()
	defer runner.Stop()

	<-ctx.Done()
}

// Stop sets the cancellation signal and joins with stopJoinDeadline.
func (s *Scheduler) Stop(configID string) error {
	s.mu.Lock()
	t, ok := s.tasks[configID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	t.cancel()
	t.running = false
	s.mu.Unlock()

	select {
	case <-t.done:
	case <-time.After(stopJoinDeadline):
		return fmt.Errorf("scheduler: monitor task for %s did not stop within %s", configID, stopJoinDeadline)
	}

	s.mu.Lock()
	delete(s.tasks, configID)
	s.mu.Unlock()
	return nil
}

// Restart stops then restarts a configuration's monitor task, per spec.md
// §4.7: restart(id) = stop(id); sleep 1s; start(id).
func (s *Scheduler) Restart(ctx context.Context, configID string) error {
	if err := s.Stop(configID); err != nil {
		return err
	}
	time.Sleep(time.Second)
	return s.Start(ctx, configID)
}

// IsRunning reports whether configID currently has a live monitor task.
func (s *Scheduler) IsRunning(configID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[configID]
	return ok && t.running
}

// Cleanup scans every configID in activeConfigIDs, restarting any whose
// monitor task is not alive (spec.md §4.7 "cleanup" operation).
func (s *Scheduler) Cleanup(ctx context.Context, activeConfigIDs []string) []string {
	var restarted []string
	for _, id := range activeConfigIDs {
		if s.IsRunning(id) {
			continue
		}
		if err := s.Start(ctx, id); err != nil {
			s.log.WithField("configuration_id", id).WithError(err).Warn("cleanup failed to restart monitor task")
			continue
		}
		restarted = append(restarted, id)
	}
	return restarted
}
