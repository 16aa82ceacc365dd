// Package detector implements the Change Detector: per-resource
// lastUpdated filter queries, the audit-endpoint probe-and-remember policy
// for aggregate data, and the watermark that only advances after success
// (spec.md §4.5).
package detector

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
)

// FilterProbe issues a one-record GET (most recently updated first) and
// returns the raw body. *hisapi.Client satisfies this via FetchLastUpdated;
// the detector reads the record and the pager's total itself, see
// resourceChangedSince.
type FilterProbe interface {
	FetchLastUpdated(ctx context.Context, resource string) ([]byte, error)
}

// AuditProbe reports whether the destination exposes an aggregate audit
// endpoint, and is only consulted once per instance/resource (the caller
// caches the result in a ReplicationCache).
type AuditProbe interface {
	ProbeAuditEndpoint(ctx context.Context, resource string) (bool, error)
}

// Watermarks stores and advances the per-configuration/resource watermark
// timestamps the detector compares against.
type Watermarks interface {
	Get(configID, resource string) (time.Time, bool)
	Advance(configID, resource string, to time.Time)
}

// AggregateChangeReport is the data-phase entry in Details (spec.md §4.5
// output shape).
type AggregateChangeReport struct {
	HasChanges bool
	Count      int
}

// Details is the nested detail block of the detector's output shape.
type Details struct {
	Metadata  []string
	Aggregate AggregateChangeReport
	Events    AggregateChangeReport
	Tracker   AggregateChangeReport
}

// Result is the detector's full output shape (spec.md §4.5).
type Result struct {
	HasChanges     bool
	MetadataChanges bool
	DataChanges    bool
	Details        Details
}

// Detector evaluates change state for one configuration.
type Detector struct {
	filter     FilterProbe
	audit      AuditProbe
	watermarks Watermarks
	// auditCapable caches, per resource, whether the destination exposed an
	// audit endpoint on the last probe (resolves the aggregate false-
	// positive Open Question: probe once, remember the answer).
	auditCapable map[string]bool
}

// New constructs a Detector. auditCapableCache may be nil; the detector will
// populate it lazily and the caller is expected to persist it (e.g. via a
// ReplicationCache-backed Watermarks implementation) across ticks.
func New(filter FilterProbe, audit AuditProbe, watermarks Watermarks, auditCapableCache map[string]bool) *Detector {
	if auditCapableCache == nil {
		auditCapableCache = make(map[string]bool)
	}
	return &Detector{filter: filter, audit: audit, watermarks: watermarks, auditCapable: auditCapableCache}
}

// DetectMetadata checks each monitored resource's lastUpdated filter query
// against its stored watermark.
func (d *Detector) DetectMetadata(ctx context.Context, configID string, resources []string) ([]string, error) {
	var changed []string
	for _, resource := range resources {
		watermark, _ := d.watermarks.Get(configID, resource)
		body, err := d.filter.FetchLastUpdated(ctx, resource)
		if err != nil {
			return changed, err
		}
		if resourceChangedSince(body, watermark) {
			changed = append(changed, resource)
		}
	}
	return changed, nil
}

// resourceChangedSince reports whether the fetched single record's
// lastUpdated is after the watermark. An empty body (no records) means no
// change. With a zero watermark, or a record whose lastUpdated cannot be
// read, any record at all (pager total above zero) counts as a change.
func resourceChangedSince(body []byte, watermark time.Time) bool {
	if len(body) == 0 {
		return false
	}
	root := gjson.ParseBytes(body)
	if !watermark.IsZero() {
		var latest string
		root.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				latest = value.Get("0.lastUpdated").String()
				return false
			}
			return true
		})
		if updated, err := time.Parse("2006-01-02T15:04:05", latest); err == nil {
			return updated.After(watermark)
		}
	}
	if total := root.Get("pager.total"); total.Exists() {
		return total.Int() > 0
	}
	return false
}

// DetectAggregate reports aggregate-data changes. It probes once whether the
// destination exposes an audit endpoint; absent that, and per the documented
// false-positive policy (spec.md §9), it conservatively reports changed.
// When the endpoint exists, changes are read with the same lastUpdated
// query as metadata; the audit endpoint itself is not queried for changes.
func (d *Detector) DetectAggregate(ctx context.Context, configID, resource string) (AggregateChangeReport, error) {
	capable, known := d.auditCapable[resource]
	if !known {
		probed, err := d.audit.ProbeAuditEndpoint(ctx, resource)
		if err != nil {
			return AggregateChangeReport{}, err
		}
		capable = probed
		d.auditCapable[resource] = capable
	}

	if !capable {
		// Conservative false-positive policy: no audit endpoint, assume changed.
		return AggregateChangeReport{HasChanges: true, Count: -1}, nil
	}

	watermark, _ := d.watermarks.Get(configID, resource)
	body, err := d.filter.FetchLastUpdated(ctx, resource)
	if err != nil {
		return AggregateChangeReport{}, err
	}
	if resourceChangedSince(body, watermark) {
		root := gjson.ParseBytes(body)
		return AggregateChangeReport{HasChanges: true, Count: int(root.Get("pager.total").Int())}, nil
	}
	return AggregateChangeReport{}, nil
}

// DetectEventsOrTracker reports change state for an events- or tracker-
// shaped resource, which always uses the lastUpdated query rather than the
// audit-endpoint probe (spec.md §4.5).
func (d *Detector) DetectEventsOrTracker(ctx context.Context, configID, resource string) (AggregateChangeReport, error) {
	watermark, _ := d.watermarks.Get(configID, resource)
	body, err := d.filter.FetchLastUpdated(ctx, resource)
	if err != nil {
		return AggregateChangeReport{}, err
	}
	if resourceChangedSince(body, watermark) {
		root := gjson.ParseBytes(body)
		return AggregateChangeReport{HasChanges: true, Count: int(root.Get("pager.total").Int())}, nil
	}
	return AggregateChangeReport{}, nil
}

// AdvanceWatermark advances the stored watermark for a resource; callers
// invoke this only after a successful sync (spec.md §4.5).
func (d *Detector) AdvanceWatermark(configID, resource string, to time.Time) {
	d.watermarks.Advance(configID, resource, to)
}
