// Package syncconfig models the directed pairing between a source and a
// destination Instance, and what/how to replicate between them.
package syncconfig

import (
	"fmt"
	"time"
)

// SyncType enumerates what a configuration replicates.
type SyncType string

const (
	SyncMetadata         SyncType = "metadata"
	SyncAggregateData    SyncType = "aggregate-data"
	SyncEvents           SyncType = "events"
	SyncTracker          SyncType = "tracker"
	SyncAggregateMetadata SyncType = "aggregate+metadata"
	SyncAllData          SyncType = "all-data"
	SyncComplete         SyncType = "complete"
)

// ImportStrategy enumerates how objects are merged at the destination.
type ImportStrategy string

const (
	StrategyCreateOnly      ImportStrategy = "create-only"
	StrategyUpdateOnly      ImportStrategy = "update-only"
	StrategyCreateAndUpdate ImportStrategy = "create-and-update"
	StrategyDelete          ImportStrategy = "delete"
)

// MergeMode enumerates the destination's object-merge semantics.
type MergeMode string

const (
	MergeReplace MergeMode = "replace"
	MergeMerge   MergeMode = "merge"
)

// ExecutionMode enumerates how a configuration is triggered.
type ExecutionMode string

const (
	ExecutionManual    ExecutionMode = "manual"
	ExecutionScheduled ExecutionMode = "scheduled"
	ExecutionAutomatic ExecutionMode = "automatic"
)

// SyncConfiguration is a directed source -> destination replication pairing.
type SyncConfiguration struct {
	ID              string
	Name            string
	SourceID        string
	DestinationID   string
	SyncType        SyncType
	ImportStrategy  ImportStrategy
	MergeMode       MergeMode
	ExecutionMode   ExecutionMode
	CronExpression  string // only meaningful when ExecutionMode == ExecutionScheduled
	PageSize        int    // 1..1000, default 50
	DateStart       *time.Time
	DateEnd         *time.Time
	Active          bool

	// Families curates the metadata families a metadata-phase run resolves
	// the closure of (spec.md §8's "families=[users]" scenario attribute).
	// Empty means every family in the table.
	Families []string
	// DataSets, Programs and OrgUnits scope the aggregate/events/tracker
	// phases respectively. The lists are passed to the pipelines as they are,
	// without resolving them against the source: empty DataSets means the
	// aggregate phase fetches nothing, and empty Programs means the events
	// phase fetches nothing and the tracker phase queries with an empty
	// program id. Empty OrgUnits means the root org unit with descendant scope.
	DataSets []string
	Programs []string
	OrgUnits []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the invariants from spec.md §3.
func (c SyncConfiguration) Validate() error {
	if c.SourceID == "" || c.DestinationID == "" {
		return fmt.Errorf("source and destination are required")
	}
	if c.SourceID == c.DestinationID {
		return fmt.Errorf("source and destination must differ")
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return fmt.Errorf("page size %d out of range [1,1000]", c.PageSize)
	}
	if c.DateStart != nil && c.DateEnd != nil && c.DateStart.After(*c.DateEnd) {
		return fmt.Errorf("date_start must not be after date_end")
	}
	if c.ExecutionMode == ExecutionScheduled && c.CronExpression == "" {
		return fmt.Errorf("scheduled execution mode requires a cron expression")
	}
	switch c.ImportStrategy {
	case StrategyCreateOnly, StrategyUpdateOnly, StrategyCreateAndUpdate, StrategyDelete:
	default:
		return fmt.Errorf("unknown import strategy %q", c.ImportStrategy)
	}
	switch c.MergeMode {
	case MergeReplace, MergeMerge:
	default:
		return fmt.Errorf("unknown merge mode %q", c.MergeMode)
	}
	return nil
}

// DefaultPageSize is used when a configuration does not specify one.
const DefaultPageSize = 50

// Phases returns the ordered set of pipeline phases implied by SyncType,
// following the fixed order metadata -> tracker -> events -> aggregate from
// spec.md §4.3/§5.
func (c SyncConfiguration) Phases() []string {
	var phases []string
	switch c.SyncType {
	case SyncMetadata:
		phases = []string{"metadata"}
	case SyncAggregateData:
		phases = []string{"aggregate"}
	case SyncEvents:
		phases = []string{"events"}
	case SyncTracker:
		phases = []string{"tracker"}
	case SyncAggregateMetadata:
		phases = []string{"metadata", "aggregate"}
	case SyncAllData:
		phases = []string{"tracker", "events", "aggregate"}
	case SyncComplete:
		phases = []string{"metadata", "tracker", "events", "aggregate"}
	}
	return phases
}
