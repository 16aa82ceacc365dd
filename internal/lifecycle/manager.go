package lifecycle

import (
	"context"
	"time"
)

// CannotSyncReason enumerates why Tick declined to run a sync (spec.md
// §4.6 steps 2-4).
type CannotSyncReason string

const (
	ReasonNone      CannotSyncReason = ""
	ReasonRunning   CannotSyncReason = "running"
	ReasonCooldown  CannotSyncReason = "cooldown"
	ReasonThrottled CannotSyncReason = "throttled"
)

// State is the per-configuration lifecycle state (spec.md §4.6 step 5).
type State string

const (
	StateInitial      State = "INITIAL"
	StateMetadataDone State = "METADATA_DONE"
)

// JobActivity reports whether a configuration already has a PENDING/RUNNING
// Job (spec.md §4.6 step 2).
type JobActivity interface {
	HasActiveJob(ctx context.Context, configID string) (bool, error)
}

// CooldownStore tracks the per-configuration cooldown deadline armed after a
// failed sync (spec.md §4.6 steps 3 and 6).
type CooldownStore interface {
	CooldownUntil(configID string) (time.Time, bool)
	ArmCooldown(configID string, until time.Time)
	ClearCooldown(configID string)
}

// StateStore tracks the per-configuration lifecycle State.
type StateStore interface {
	Get(configID string) State
	Set(configID string, s State)
}

// ChangeResult is the subset of detector.Result the manager needs; kept as
// its own type so this package does not have to import detector's full
// output shape.
type ChangeResult struct {
	HasChanges      bool
	MetadataChanges bool
	// DataChangeTypes names the data phases (aggregate/events/tracker) whose
	// has_changes flag is set.
	DataChangeTypes []string
}

// Runner executes the sync phases the manager decides on.
type Runner interface {
	// RunFull runs metadata first, then every data phase implied by the
	// configuration's sync_type.
	RunFull(ctx context.Context, configID string) error
	// RunIncremental runs only the named phases.
	RunIncremental(ctx context.Context, configID string, phases []string) error
}

// Detector resolves change state for a configuration.
type Detector interface {
	Detect(ctx context.Context, configID string) (ChangeResult, error)
}

// Decision is Tick's outcome, always populated so callers can log it
// uniformly regardless of which branch fired.
type Decision struct {
	Ran            bool
	CannotSync     CannotSyncReason
	CooldownRemain time.Duration
	NoChanges      bool
	Err            error
}

// Manager is the per-configuration FSM described in spec.md §4.6. One
// Manager instance is shared by every monitor task; all methods are safe
// for concurrent use across configurations as long as the injected stores
// are.
type Manager struct {
	activity   JobActivity
	cooldowns  CooldownStore
	states     StateStore
	detector   Detector
	runner     Runner
	rateStates map[string]*RateState
	maxPerHour func(configID string) int
	cooldownAfterError func(configID string) time.Duration
}

// NewManager wires the Lifecycle Manager's collaborators. maxPerHour and
// cooldownAfterError resolve per-configuration settings (autosync.Settings)
// without this package depending on the autosync domain package.
func NewManager(activity JobActivity, cooldowns CooldownStore, states StateStore, det Detector, runner Runner, maxPerHour func(string) int, cooldownAfterError func(string) time.Duration) *Manager {
	return &Manager{
		activity:            activity,
		cooldowns:           cooldowns,
		states:              states,
		detector:            det,
		runner:              runner,
		rateStates:          make(map[string]*RateState),
		maxPerHour:          maxPerHour,
		cooldownAfterError:  cooldownAfterError,
	}
}

func (m *Manager) rateStateFor(configID string) *RateState {
	if rs, ok := m.rateStates[configID]; ok {
		return rs
	}
	limit := 0
	if m.maxPerHour != nil {
		limit = m.maxPerHour(configID)
	}
	rs := NewRateState(limit)
	m.rateStates[configID] = rs
	return rs
}

// Tick runs the six-step decision procedure once for configID (spec.md
// §4.6). Step 1 (auto-sync disabled) is the caller's responsibility: the
// Scheduler only invokes Tick for configurations whose monitor task is
// running, which implies auto-sync is enabled.
func (m *Manager) Tick(ctx context.Context, configID string) Decision {
	active, err := m.activity.HasActiveJob(ctx, configID)
	if err != nil {
		return Decision{Err: err}
	}
	if active {
		return Decision{CannotSync: ReasonRunning}
	}

	if until, armed := m.cooldowns.CooldownUntil(configID); armed {
		if remaining := time.Until(until); remaining > 0 {
			return Decision{CannotSync: ReasonCooldown, CooldownRemain: remaining}
		}
		m.cooldowns.ClearCooldown(configID)
	}

	rateState := m.rateStateFor(configID)
	if rateState.Throttled() {
		return Decision{CannotSync: ReasonThrottled}
	}

	changes, err := m.detector.Detect(ctx, configID)
	if err != nil {
		return Decision{Err: err}
	}
	if !changes.HasChanges {
		return Decision{NoChanges: true}
	}

	// Rate counter is incremented at admission, not completion, so
	// in-flight syncs count against the hourly budget (spec.md §5).
	rateState.Consume()

	state := m.states.Get(configID)
	var runErr error
	if state == StateInitial || state == "" {
		runErr = m.runner.RunFull(ctx, configID)
	} else {
		phases := incrementalPhases(changes)
		if len(phases) == 0 {
			runErr = m.runner.RunFull(ctx, configID)
		} else {
			runErr = m.runner.RunIncremental(ctx, configID, phases)
		}
	}

	if runErr != nil {
		cooldown := 10 * time.Minute
		if m.cooldownAfterError != nil {
			if d := m.cooldownAfterError(configID); d > 0 {
				cooldown = d
			}
		}
		m.cooldowns.ArmCooldown(configID, time.Now().Add(cooldown))
		return Decision{Ran: true, Err: runErr}
	}

	m.states.Set(configID, StateMetadataDone)
	return Decision{Ran: true}
}

// incrementalPhases maps a ChangeResult to the phase set an incremental run
// should execute: metadata when metadata_changes, plus each data phase
// whose has_changes flag is set.
func incrementalPhases(changes ChangeResult) []string {
	var phases []string
	if changes.MetadataChanges {
		phases = append(phases, "metadata")
	}
	phases = append(phases, changes.DataChangeTypes...)
	return phases
}
