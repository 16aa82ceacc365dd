package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeActivity struct{ active bool }

func (f *fakeActivity) HasActiveJob(ctx context.Context, configID string) (bool, error) {
	return f.active, nil
}

type fakeCooldowns struct {
	until map[string]time.Time
}

func newFakeCooldowns() *fakeCooldowns { return &fakeCooldowns{until: make(map[string]time.Time)} }

func (f *fakeCooldowns) CooldownUntil(configID string) (time.Time, bool) {
	t, ok := f.until[configID]
	return t, ok
}
func (f *fakeCooldowns) ArmCooldown(configID string, until time.Time) { f.until[configID] = until }
func (f *fakeCooldowns) ClearCooldown(configID string)                { delete(f.until, configID) }

type fakeStates struct{ states map[string]State }

func newFakeStates() *fakeStates { return &fakeStates{states: make(map[string]State)} }
func (f *fakeStates) Get(configID string) State { return f.states[configID] }
func (f *fakeStates) Set(configID string, s State) { f.states[configID] = s }

type fakeDetector struct {
	result ChangeResult
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, configID string) (ChangeResult, error) {
	return f.result, f.err
}

type fakeRunner struct {
	fullCalls        int
	incrementalCalls [][]string
	err              error
}

func (f *fakeRunner) RunFull(ctx context.Context, configID string) error {
	f.fullCalls++
	return f.err
}
func (f *fakeRunner) RunIncremental(ctx context.Context, configID string, phases []string) error {
	f.incrementalCalls = append(f.incrementalCalls, phases)
	return f.err
}

func TestTick_ReturnsRunningWhenJobActive(t *testing.T) {
	m := NewManager(&fakeActivity{active: true}, newFakeCooldowns(), newFakeStates(), &fakeDetector{}, &fakeRunner{}, nil, nil)
	d := m.Tick(context.Background(), "cfg1")
	if d.CannotSync != ReasonRunning {
		t.Fatalf("expected ReasonRunning, got %v", d.CannotSync)
	}
}

func TestTick_ReturnsCooldownWhenArmed(t *testing.T) {
	cooldowns := newFakeCooldowns()
	cooldowns.ArmCooldown("cfg1", time.Now().Add(time.Hour))
	m := NewManager(&fakeActivity{}, cooldowns, newFakeStates(), &fakeDetector{}, &fakeRunner{}, nil, nil)
	d := m.Tick(context.Background(), "cfg1")
	if d.CannotSync != ReasonCooldown {
		t.Fatalf("expected ReasonCooldown, got %v", d.CannotSync)
	}
	if d.CooldownRemain <= 0 {
		t.Fatal("expected positive cooldown remaining")
	}
}

func TestTick_NoChangesIsIdle(t *testing.T) {
	m := NewManager(&fakeActivity{}, newFakeCooldowns(), newFakeStates(), &fakeDetector{result: ChangeResult{HasChanges: false}}, &fakeRunner{}, nil, nil)
	d := m.Tick(context.Background(), "cfg1")
	if !d.NoChanges {
		t.Fatal("expected NoChanges")
	}
}

func TestTick_InitialStateRunsFullSync(t *testing.T) {
	runner := &fakeRunner{}
	states := newFakeStates()
	m := NewManager(&fakeActivity{}, newFakeCooldowns(), states, &fakeDetector{result: ChangeResult{HasChanges: true}}, runner, nil, nil)

	d := m.Tick(context.Background(), "cfg1")
	if !d.Ran || d.Err != nil {
		t.Fatalf("expected successful run, got %+v", d)
	}
	if runner.fullCalls != 1 {
		t.Fatalf("expected full sync, got %d full calls", runner.fullCalls)
	}
	if states.Get("cfg1") != StateMetadataDone {
		t.Fatalf("expected state METADATA_DONE, got %v", states.Get("cfg1"))
	}
}

func TestTick_MetadataDoneRunsIncrementalPhases(t *testing.T) {
	runner := &fakeRunner{}
	states := newFakeStates()
	states.Set("cfg1", StateMetadataDone)
	detector := &fakeDetector{result: ChangeResult{HasChanges: true, MetadataChanges: true, DataChangeTypes: []string{"aggregate"}}}
	m := NewManager(&fakeActivity{}, newFakeCooldowns(), states, detector, runner, nil, nil)

	d := m.Tick(context.Background(), "cfg1")
	if !d.Ran || d.Err != nil {
		t.Fatalf("expected successful run, got %+v", d)
	}
	if len(runner.incrementalCalls) != 1 {
		t.Fatalf("expected 1 incremental call, got %d", len(runner.incrementalCalls))
	}
	got := runner.incrementalCalls[0]
	if len(got) != 2 || got[0] != "metadata" || got[1] != "aggregate" {
		t.Fatalf("expected [metadata aggregate], got %v", got)
	}
}

func TestTick_FailureArmsCooldown(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	cooldowns := newFakeCooldowns()
	states := newFakeStates()
	states.Set("cfg1", StateMetadataDone)
	detector := &fakeDetector{result: ChangeResult{HasChanges: true, MetadataChanges: true}}
	m := NewManager(&fakeActivity{}, cooldowns, states, detector, runner, nil, func(string) time.Duration { return 5 * time.Minute })

	d := m.Tick(context.Background(), "cfg1")
	if d.Err == nil {
		t.Fatal("expected error")
	}
	if _, armed := cooldowns.CooldownUntil("cfg1"); !armed {
		t.Fatal("expected cooldown to be armed after failure")
	}
}

func TestTick_ThrottledWhenRateExceeded(t *testing.T) {
	runner := &fakeRunner{}
	detector := &fakeDetector{result: ChangeResult{HasChanges: true}}
	maxPerHour := func(string) int { return 1 }
	m := NewManager(&fakeActivity{}, newFakeCooldowns(), newFakeStates(), detector, runner, maxPerHour, nil)

	first := m.Tick(context.Background(), "cfg1")
	if !first.Ran {
		t.Fatalf("expected first tick to run, got %+v", first)
	}
	second := m.Tick(context.Background(), "cfg1")
	if second.CannotSync != ReasonThrottled {
		t.Fatalf("expected second tick throttled, got %+v", second)
	}
}
