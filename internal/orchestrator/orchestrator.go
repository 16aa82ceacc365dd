package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/his-sync/replicator/internal/data"
	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/report"
	"github.com/his-sync/replicator/internal/domain/syncconfig"
	"github.com/his-sync/replicator/internal/metadata"
	"github.com/his-sync/replicator/internal/metrics"
	"github.com/his-sync/replicator/internal/store"
	"github.com/his-sync/replicator/pkg/logger"
)

// fixedPhaseOrder is the Orchestrator's non-negotiable phase sequence
// (spec.md §4.3/§5): metadata before any data phase, then tracker, events,
// aggregate in that order.
var fixedPhaseOrder = []string{"metadata", "tracker", "events", "aggregate"}

var mergeModeWire = map[syncconfig.MergeMode]string{
	syncconfig.MergeReplace: "REPLACE",
	syncconfig.MergeMerge:   "MERGE",
}

var importStrategyWire = map[syncconfig.ImportStrategy]string{
	syncconfig.StrategyCreateOnly:      "CREATE",
	syncconfig.StrategyUpdateOnly:      "UPDATE",
	syncconfig.StrategyCreateAndUpdate: "CREATE_AND_UPDATE",
	syncconfig.StrategyDelete:          "DELETE",
}

// Orchestrator drives one configuration's Job end to end (spec.md §4.3):
// open the Job, probe both instances, run the requested phases in fixed
// order, and finalize the Job with a summary.
type Orchestrator struct {
	configs   store.ConfigurationStore
	instances store.InstanceStore
	jobs      store.JobStore
	clients   ClientFactory
	log       *logger.Logger

	// Metrics is optional; nil disables metric recording. Set directly
	// after New when the application wiring layer has a registry.
	Metrics *metrics.Metrics

	// Entities is optional; nil skips per-version field resolution and the
	// metadata phase uses each resource's Descriptor.Fields unconditionally.
	// Set directly after New when the application wiring layer has a store.
	Entities store.EntityStore
}

// New wires the Sync Orchestrator's collaborators, mirroring the teacher's
// one-constructor Application composition: stores plus a client factory
// behind a small typed struct.
func New(configs store.ConfigurationStore, instances store.InstanceStore, jobs store.JobStore, clients ClientFactory, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewDefault("orchestrator")
	}
	return &Orchestrator{configs: configs, instances: instances, jobs: jobs, clients: clients, log: log}
}

// RunFull satisfies lifecycle.Runner: metadata first, then every data phase
// implied by the configuration's sync_type.
func (o *Orchestrator) RunFull(ctx context.Context, configID string) error {
	cfg, err := o.configs.GetConfiguration(ctx, configID)
	if err != nil {
		return fmt.Errorf("orchestrator: load configuration %s: %w", configID, err)
	}
	return o.Run(ctx, configID, cfg.Phases())
}

// RunIncremental satisfies lifecycle.Runner: only the named phases.
func (o *Orchestrator) RunIncremental(ctx context.Context, configID string, phases []string) error {
	return o.Run(ctx, configID, phases)
}

// Run is the Orchestrator's five-step contract for one execution (spec.md
// §4.3).
func (o *Orchestrator) Run(ctx context.Context, configID string, requestedPhases []string) error {
	cfg, err := o.configs.GetConfiguration(ctx, configID)
	if err != nil {
		return fmt.Errorf("orchestrator: load configuration %s: %w", configID, err)
	}

	// Step 1: open a Job with status RUNNING and started_at = now().
	j := job.Job{
		ConfigurationID: configID,
		JobType:         jobTypeFor(requestedPhases),
		Status:          job.StatusRunning,
		StartedAt:       time.Now().UTC(),
		MaxRetries:      job.DefaultMaxRetries,
	}
	j, err = o.jobs.CreateJob(ctx, j)
	if err != nil {
		return fmt.Errorf("orchestrator: create job: %w", err)
	}

	source, destination, err := o.resolveClients(ctx, cfg)
	if err != nil {
		j.Status = job.StatusFailed
		j.CompletedAt = time.Now().UTC()
		j.LastError = err.Error()
		j.AppendLog("✗ failed to resolve instances: " + err.Error())
		_, _ = o.jobs.UpdateJob(ctx, j)
		return err
	}

	// Step 2: confirm both instances reachable with a one-shot probe.
	if err := source.Probe(ctx); err != nil {
		return o.fail(ctx, j, "source unreachable: "+err.Error())
	}
	if err := destination.Probe(ctx); err != nil {
		return o.fail(ctx, j, "destination unreachable: "+err.Error())
	}

	return o.executePhases(ctx, cfg, j, requestedPhases, source, destination)
}

// executePhases is steps 3-5 of the Orchestrator's contract, shared by Run
// and RetryJob: run each requested phase in fixed order, then finalize j
// with a summary. j must already be RUNNING with started_at set.
func (o *Orchestrator) executePhases(ctx context.Context, cfg syncconfig.SyncConfiguration, j job.Job, requestedPhases []string, source, destination HISClient) error {
	var outcomes []phaseOutcome
	for _, name := range fixedPhaseOrder {
		if !contains(requestedPhases, name) {
			continue
		}
		outcome := o.runPhase(ctx, cfg, name, source, destination)
		outcomes = append(outcomes, outcome)
		applyOutcome(&j, outcome)
	}

	j.CompletedAt = time.Now().UTC()
	j.Status = finalStatus(outcomes)
	j.Progress = 100
	j.AppendLog(summaryBlock(outcomes))

	o.recordMetrics(j, outcomes)

	if _, err := o.jobs.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("orchestrator: finalize job: %w", err)
	}
	if j.Status == job.StatusFailed {
		return fmt.Errorf("orchestrator: job %s failed", j.ID)
	}
	return nil
}

// recordMetrics updates the optional Prometheus collectors with this run's
// outcome; a no-op when Metrics is nil.
func (o *Orchestrator) recordMetrics(j job.Job, outcomes []phaseOutcome) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.JobsTotal.WithLabelValues(j.ConfigurationID, string(j.Status)).Inc()
	o.Metrics.JobDuration.WithLabelValues(j.ConfigurationID).Observe(j.CompletedAt.Sub(j.StartedAt).Seconds())
	for _, outcome := range outcomes {
		if outcome.succeeded > 0 {
			o.Metrics.ResourcesSynced.WithLabelValues(outcome.name, "succeeded").Add(float64(outcome.succeeded))
		}
		if outcome.resourceFailures > 0 {
			o.Metrics.ResourcesSynced.WithLabelValues(outcome.name, "failed").Add(float64(outcome.resourceFailures))
		}
	}
}

// RetryJob replays a FAILED job's phases under its own Job record, per the
// retry FSM (spec.md §4.4): FAILED -> RETRYING -> PENDING -> RUNNING, then
// the same finalize/summary path as a fresh run. The caller (the retry
// poller) is responsible for calling this only on EligibleForRetry jobs
// whose next_retry_at has elapsed.
func (o *Orchestrator) RetryJob(ctx context.Context, j job.Job) error {
	if err := j.Transition(job.StatusRetrying); err != nil {
		return fmt.Errorf("orchestrator: retry %s: %w", j.ID, err)
	}
	if _, err := o.jobs.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("orchestrator: mark job %s retrying: %w", j.ID, err)
	}

	if err := j.Transition(job.StatusPending); err != nil {
		return fmt.Errorf("orchestrator: retry %s: %w", j.ID, err)
	}
	j.RetryCount++
	if _, err := o.jobs.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("orchestrator: mark job %s pending: %w", j.ID, err)
	}

	cfg, err := o.configs.GetConfiguration(ctx, j.ConfigurationID)
	if err != nil {
		return fmt.Errorf("orchestrator: load configuration %s: %w", j.ConfigurationID, err)
	}
	source, destination, err := o.resolveClients(ctx, cfg)
	if err != nil {
		return o.fail(ctx, j, "resolve instances on retry: "+err.Error())
	}
	if err := source.Probe(ctx); err != nil {
		return o.fail(ctx, j, "source unreachable on retry: "+err.Error())
	}
	if err := destination.Probe(ctx); err != nil {
		return o.fail(ctx, j, "destination unreachable on retry: "+err.Error())
	}

	if err := j.Transition(job.StatusRunning); err != nil {
		return fmt.Errorf("orchestrator: retry %s: %w", j.ID, err)
	}
	j.StartedAt = time.Now().UTC()
	j.IsRetry = true
	if j.ParentJobID == "" {
		j.ParentJobID = j.ID
	}

	phases := phasesForJobType(j.JobType, cfg)
	return o.executePhases(ctx, cfg, j, phases, source, destination)
}

// phasesForJobType maps a Job's recorded job_type back to the phase list
// Run/RetryJob dispatch, the inverse of jobTypeFor.
func phasesForJobType(t job.Type, cfg syncconfig.SyncConfiguration) []string {
	switch t {
	case job.TypeMetadata:
		return []string{"metadata"}
	case job.TypeAggregate:
		return []string{"aggregate"}
	case job.TypeEvents:
		return []string{"events"}
	case job.TypeTracker:
		return []string{"tracker"}
	case job.TypeAllData, job.TypeData:
		return []string{"tracker", "events", "aggregate"}
	default:
		return cfg.Phases()
	}
}

func (o *Orchestrator) fail(ctx context.Context, j job.Job, reason string) error {
	j.Status = job.StatusFailed
	j.CompletedAt = time.Now().UTC()
	j.LastError = reason
	j.AppendLog("✗ " + reason)
	_, _ = o.jobs.UpdateJob(ctx, j)
	return fmt.Errorf("orchestrator: %s", reason)
}

func (o *Orchestrator) resolveClients(ctx context.Context, cfg syncconfig.SyncConfiguration) (HISClient, HISClient, error) {
	srcInst, err := o.instances.GetInstance(ctx, cfg.SourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load source instance: %w", err)
	}
	dstInst, err := o.instances.GetInstance(ctx, cfg.DestinationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load destination instance: %w", err)
	}
	return o.clients(srcInst), o.clients(dstInst), nil
}

func jobTypeFor(phases []string) job.Type {
	if len(phases) == 1 {
		switch phases[0] {
		case "metadata":
			return job.TypeMetadata
		case "aggregate":
			return job.TypeAggregate
		case "events":
			return job.TypeEvents
		case "tracker":
			return job.TypeTracker
		}
	}
	for _, p := range phases {
		if p == "metadata" {
			return job.TypeComplete
		}
	}
	return job.TypeAllData
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

// runPhase dispatches one pipeline invocation and normalizes its result into
// a phaseOutcome the finalizer and summary renderer share.
func (o *Orchestrator) runPhase(ctx context.Context, cfg syncconfig.SyncConfiguration, name string, source, destination HISClient) phaseOutcome {
	switch name {
	case "metadata":
		return o.runMetadataPhase(ctx, cfg, source, destination)
	case "aggregate":
		return o.runAggregatePhase(ctx, cfg, source, destination)
	case "events":
		return o.runEventsPhase(ctx, cfg, source, destination)
	case "tracker":
		return o.runTrackerPhase(ctx, cfg, source, destination)
	default:
		return phaseOutcome{name: name, err: fmt.Errorf("unknown phase %q", name)}
	}
}

func (o *Orchestrator) runMetadataPhase(ctx context.Context, cfg syncconfig.SyncConfiguration, source, destination HISClient) phaseOutcome {
	selected := cfg.Families
	if len(selected) == 0 {
		for _, f := range metadata.Families {
			selected = append(selected, f.Name)
		}
	}
	families, err := metadata.ResolveClosure(selected)
	if err != nil {
		return phaseOutcome{name: "metadata", err: err}
	}

	outcome := phaseOutcome{name: "metadata"}
	opts := metadata.SyncOptions{
		MergeMode:      mergeModeWire[cfg.MergeMode],
		ImportStrategy: importStrategyWire[cfg.ImportStrategy],
		PageSize:       cfg.PageSize,
		FieldsOverride: o.fieldsOverrideFor(ctx, cfg, families),
	}
	for _, family := range families {
		for _, resource := range family.Members {
			outcome.attempted++
			result := metadata.SyncResource(ctx, source, destination, resource, opts, o.log)
			if result.Err != nil {
				outcome.resourceFailures++
				o.log.WithField("resource", resource).WithError(result.Err).Warn("metadata resource sync failed")
				continue
			}
			outcome.succeeded++
			outcome.sourceCount += result.SourceCount
			outcome.counts.Add(result.Counts)
			if result.SummaryLine != "" {
				outcome.lines = append(outcome.lines, result.SummaryLine)
			}
		}
	}
	return outcome
}

// fieldsOverrideFor resolves a destination-version-specific "fields="
// selection for every resource in families, when the application wiring
// layer has set Entities and the destination instance has a known
// ServerVersion. Nil-safe: returns nil (no overrides) otherwise, so the
// metadata phase falls back to each resource's Descriptor.Fields.
func (o *Orchestrator) fieldsOverrideFor(ctx context.Context, cfg syncconfig.SyncConfiguration, families []metadata.Family) map[string]string {
	if o.Entities == nil {
		return nil
	}
	dstInst, err := o.instances.GetInstance(ctx, cfg.DestinationID)
	if err != nil || dstInst.ServerVersion == "" {
		return nil
	}

	overrides := make(map[string]string)
	for _, family := range families {
		for _, resource := range family.Members {
			info, err := o.Entities.GetEntityVersionInfo(ctx, dstInst.ServerVersion, resource)
			if err != nil {
				continue
			}
			if selection := info.FieldsSelection(); selection != "" {
				overrides[resource] = selection
			}
		}
	}
	return overrides
}

func (o *Orchestrator) runAggregatePhase(ctx context.Context, cfg syncconfig.SyncConfiguration, source, destination HISClient) phaseOutcome {
	start, end := dateWindow(cfg.DateStart, cfg.DateEnd)
	req := data.AggregateRequest{
		DataSets:  cfg.DataSets,
		OrgUnits:  cfg.OrgUnits,
		StartDate: start,
		EndDate:   end,
	}
	result := data.SyncAggregate(ctx, source, destination, req)
	return outcomeFromDataResult("aggregate", result.Counts, result.Err)
}

func outcomeFromDataResult(name string, counts report.Counts, err error) phaseOutcome {
	outcome := phaseOutcome{name: name, attempted: 1}
	if err != nil {
		outcome.resourceFailures = 1
		outcome.err = err
		return outcome
	}
	outcome.succeeded = 1
	outcome.counts = counts
	return outcome
}

func (o *Orchestrator) runEventsPhase(ctx context.Context, cfg syncconfig.SyncConfiguration, source, destination HISClient) phaseOutcome {
	start, end := dateWindow(cfg.DateStart, cfg.DateEnd)
	req := data.EventRequest{
		Programs:  cfg.Programs,
		OrgUnits:  cfg.OrgUnits,
		StartDate: start,
		EndDate:   end,
		PageSize:  cfg.PageSize,
	}
	result := data.SyncEvents(ctx, source, destination, req)
	return outcomeFromDataResult("events", result.Counts, result.Err)
}

func (o *Orchestrator) runTrackerPhase(ctx context.Context, cfg syncconfig.SyncConfiguration, source, destination HISClient) phaseOutcome {
	start, end := dateWindow(cfg.DateStart, cfg.DateEnd)
	outcome := phaseOutcome{name: "tracker"}
	programs := cfg.Programs
	if len(programs) == 0 {
		programs = []string{""}
	}
	for _, program := range programs {
		outcome.attempted++
		result := data.SyncTracker(ctx, source, destination, data.TrackerRequest{
			Program:   program,
			OrgUnits:  cfg.OrgUnits,
			StartDate: start,
			EndDate:   end,
			PageSize:  cfg.PageSize,
		})
		if result.Err != nil {
			outcome.resourceFailures++
			o.log.WithField("program", program).WithError(result.Err).Warn("tracker sync failed")
			continue
		}
		outcome.succeeded++
		outcome.counts.Add(result.Counts)
		if result.CapApplied {
			o.log.WithField("program", program).Warn("tracker org-unit cap applied")
		}
	}
	return outcome
}
