// Package job models one attempted execution of a SyncConfiguration and its
// state machine (spec.md §4.4).
package job

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the lifecycle of a Job.
type Status string

const (
	StatusPending                Status = "pending"
	StatusRunning                Status = "running"
	StatusCompleted              Status = "completed"
	StatusCompletedWithWarnings  Status = "completed-with-warnings"
	StatusFailed                 Status = "failed"
	StatusCancelled              Status = "cancelled"
	StatusRetrying               Status = "retrying"
	StatusFailedPermanently      Status = "failed-permanently"
)

// Type enumerates what a Job was asked to do.
type Type string

const (
	TypeComplete  Type = "complete"
	TypeMetadata  Type = "metadata"
	TypeData      Type = "data"
	TypeAggregate Type = "aggregate"
	TypeEvents    Type = "events"
	TypeTracker   Type = "tracker"
	TypeAllData   Type = "all-data"
)

// DefaultMaxRetries is the default retry budget per spec.md §3/§4.4.
const DefaultMaxRetries = 3

// Job is one attempted execution of (part of) a configuration.
type Job struct {
	ID              string
	ConfigurationID string
	JobType         Type
	Status          Status
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
	Progress        int // 0..100
	TotalItems      int
	ProcessedItems  int
	SuccessCount    int
	ErrorCount      int
	WarningCount    int
	Log             string // append-only, plain text
	RetryCount      int
	MaxRetries      int
	LastError       string
	NextRetryAt     time.Time
	ParentJobID     string
	IsRetry         bool
}

// AppendLog appends a line to the Job's append-only log message.
func (j *Job) AppendLog(line string) {
	if j.Log == "" {
		j.Log = line
		return
	}
	j.Log = strings.TrimRight(j.Log, "\n") + "\n" + line
}

// Active reports whether the job occupies the single PENDING/RUNNING slot a
// configuration may have at any instant (spec.md §5).
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// validTransitions enumerates the allowed Status -> Status edges.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted:             true,
		StatusCompletedWithWarnings: true,
		StatusFailed:                true,
		StatusCancelled:             true,
	},
	StatusFailed: {
		StatusRetrying: true,
	},
	StatusRetrying: {
		StatusPending:           true,
		StatusFailedPermanently: true,
	},
}

// Transition validates and applies a status change.
func (j *Job) Transition(to Status) error {
	allowed, ok := validTransitions[j.Status]
	if !ok || !allowed[to] {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, to)
	}
	j.Status = to
	return nil
}

// EligibleForRetry reports whether a FAILED job may be retried per spec.md §4.4:
// not itself a retry child, and under the max-retries budget.
func (j Job) EligibleForRetry() bool {
	if j.Status != StatusFailed {
		return false
	}
	if j.IsRetry {
		return false
	}
	max := j.MaxRetries
	if max <= 0 {
		max = DefaultMaxRetries
	}
	return j.RetryCount < max
}
