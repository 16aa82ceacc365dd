// Package orchestrator implements the Sync Orchestrator: the five-step
// per-Job contract that drives the metadata and data pipelines behind one
// configuration (spec.md §4.3), and the adapters that let it satisfy the
// Lifecycle Manager's Runner and Detector collaborator interfaces.
package orchestrator

import (
	"context"
	"time"

	"github.com/his-sync/replicator/internal/data"
	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/hisapi"
	"github.com/his-sync/replicator/internal/metadata"
)

// HISClient is every capability the orchestrator needs from one instance's
// HIS API client: reachability plus all three pipelines. *hisapi.Client
// satisfies this directly; tests substitute a fake.
type HISClient interface {
	Probe(ctx context.Context) error
	FetchLastUpdated(ctx context.Context, resource string) ([]byte, error)
	ProbeAuditEndpoint(ctx context.Context, resource string) (bool, error)

	metadata.SourceReader
	metadata.DestinationWriter

	data.AggregateSource
	data.AggregateDestination
	data.EventSource
	data.EventDestination
	data.TrackerSource
	data.TrackerDestination
}

var _ HISClient = (*hisapi.Client)(nil)

// ClientFactory builds (or returns a pooled) HISClient for an Instance.
// Implementations are expected to reuse the underlying *http.Client/
// connection pool across calls for the same instance (spec.md §5,
// "Per-destination HTTP clients should be reused").
type ClientFactory func(inst instance.Instance) HISClient

// dateWindow resolves a configuration's optional date bounds to a concrete
// [start, end] pair, defaulting end to now when unset.
func dateWindow(start, end *time.Time) (time.Time, time.Time) {
	var s, e time.Time
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	} else {
		e = time.Now()
	}
	return s, e
}
