package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLookup struct {
	schedules map[string]ConfigSchedule
}

func (f *fakeLookup) Scheduling(configID string) (ConfigSchedule, error) {
	return f.schedules[configID], nil
}

type countingTicker struct {
	mu    sync.Mutex
	count int32
}

func (t *countingTicker) Tick(ctx context.Context, configID string) {
	atomic.AddInt32(&t.count, 1)
}

func (t *countingTicker) Count() int32 {
	return atomic.LoadInt32(&t.count)
}

func TestScheduler_StartRefusesDuplicateTask(t *testing.T) {
	lookup := &fakeLookup{schedules: map[string]ConfigSchedule{
		"cfg1": {Automatic: true, Active: true, CheckInterval: time.Hour},
	}}
	s := New(lookup, &countingTicker{}, nil)

	if err := s.Start(context.Background(), "cfg1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop("cfg1")

	if err := s.Start(context.Background(), "cfg1"); err == nil {
		t.Fatal("expected error starting an already-running task")
	}
}

func TestScheduler_StartRefusesInactiveConfiguration(t *testing.T) {
	lookup := &fakeLookup{schedules: map[string]ConfigSchedule{
		"cfg1": {Automatic: true, Active: false},
	}}
	s := New(lookup, &countingTicker{}, nil)

	if err := s.Start(context.Background(), "cfg1"); err == nil {
		t.Fatal("expected error starting an inactive configuration")
	}
}

func TestScheduler_TicksOnInterval(t *testing.T) {
	lookup := &fakeLookup{schedules: map[string]ConfigSchedule{
		"cfg1": {Automatic: true, Active: true, CheckInterval: 20 * time.Millisecond},
	}}
	ticker := &countingTicker{}
	s := New(lookup, ticker, nil)

	if err := s.Start(context.Background(), "cfg1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop("cfg1")

	time.Sleep(100 * time.Millisecond)
	if ticker.Count() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", ticker.Count())
	}
}

func TestScheduler_StopJoinsMonitorTask(t *testing.T) {
	lookup := &fakeLookup{schedules: map[string]ConfigSchedule{
		"cfg1": {Automatic: true, Active: true, CheckInterval: 10 * time.Millisecond},
	}}
	s := New(lookup, &countingTicker{}, nil)

	if err := s.Start(context.Background(), "cfg1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop("cfg1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning("cfg1") {
		t.Fatal("expected task to be stopped")
	}
}

func TestScheduler_CleanupRestartsDeadTasks(t *testing.T) {
	lookup := &fakeLookup{schedules: map[string]ConfigSchedule{
		"cfg1": {Automatic: true, Active: true, CheckInterval: time.Hour},
	}}
	s := New(lookup, &countingTicker{}, nil)

	restarted := s.Cleanup(context.Background(), []string{"cfg1"})
	if len(restarted) != 1 || restarted[0] != "cfg1" {
		t.Fatalf("expected cfg1 to be restarted, got %v", restarted)
	}
	defer s.Stop("cfg1")

	restarted = s.Cleanup(context.Background(), []string{"cfg1"})
	if len(restarted) != 0 {
		t.Fatalf("expected no restarts for an already-running task, got %v", restarted)
	}
}
