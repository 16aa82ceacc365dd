package data

import (
	"context"
	"time"

	"github.com/his-sync/replicator/internal/domain/report"
)

// DefaultTrackerOrgUnitCap is the contractual default cap on org units
// processed per program; configurable per spec.md's resolution of the Open
// Question around the original cap of 10.
const DefaultTrackerOrgUnitCap = 10

// TrackerSource fetches paged tracked-entity-instance bundles from the
// source.
type TrackerSource interface {
	FetchTrackerBundle(ctx context.Context, program string, orgUnits []string, start, end time.Time, page, pageSize int) ([]byte, bool, error)
}

// TrackerDestination imports a tracker bundle, or its legacy three-POST
// equivalent, at the destination.
type TrackerDestination interface {
	ImportTrackerBundle(ctx context.Context, payload any) ([]byte, error)
	ImportTrackedEntityInstances(ctx context.Context, payload any) ([]byte, error)
	ImportEnrollments(ctx context.Context, payload any) ([]byte, error)
	ImportEvents(ctx context.Context, payload any) ([]byte, error)
}

// TrackerRequest describes one program's tracker sync.
type TrackerRequest struct {
	Program   string
	OrgUnits  []string // associated org units resolved from source metadata
	StartDate time.Time
	EndDate   time.Time
	PageSize  int
	// OrgUnitCap overrides DefaultTrackerOrgUnitCap when positive.
	OrgUnitCap int
	// DateFilterAttr, when its AttributeUID is set, picks the tracked-entity
	// attribute SyncTracker reports back as LatestDateFilterValue, instead of
	// relying solely on the generic lastUpdated watermark.
	DateFilterAttr DateFilterAttribute
}

// TrackerResult reports the consolidated import outcome plus whether the
// org-unit cap was applied, so the caller can log it per spec.md §4.2.
type TrackerResult struct {
	Counts     report.Counts
	CapApplied bool
	UsedUnits  int
	// LatestDateFilterValue is the lexicographically greatest configured
	// date-filter-attribute value observed across the synced TEIs, when
	// req.DateFilterAttr was configured.
	LatestDateFilterValue string
	Err                   error
}

// SyncTracker resolves (and caps) the program's org units, fetches tracked
// entity instances per unit, flattens TEIs into trackedEntities/
// enrollments/events, and imports the bundle — falling back to three
// sequential legacy POSTs if the bundle endpoint errors.
func SyncTracker(ctx context.Context, src TrackerSource, dst TrackerDestination, req TrackerRequest) TrackerResult {
	orgUnitCap := req.OrgUnitCap
	if orgUnitCap <= 0 {
		orgUnitCap = DefaultTrackerOrgUnitCap
	}
	orgUnits := req.OrgUnits
	capApplied := false
	if len(orgUnits) > orgUnitCap {
		orgUnits = orgUnits[:orgUnitCap]
		capApplied = true
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	// One paged query per org unit; with no units, a single unscoped query.
	unitGroups := [][]string{orgUnits}
	if len(orgUnits) > 0 {
		unitGroups = make([][]string, 0, len(orgUnits))
		for _, unit := range orgUnits {
			unitGroups = append(unitGroups, []string{unit})
		}
	}

	var allTEIs []any
	for _, units := range unitGroups {
		page := 1
		for {
			body, hasNext, err := src.FetchTrackerBundle(ctx, req.Program, units, req.StartDate, req.EndDate, page, pageSize)
			if err != nil {
				return TrackerResult{CapApplied: capApplied, UsedUnits: len(orgUnits), Err: err}
			}
			allTEIs = append(allTEIs, extractArray(body, "trackedEntityInstances")...)
			if !hasNext {
				break
			}
			page++
		}
	}

	latest := latestDateFilterValue(allTEIs, req.DateFilterAttr)

	trackedEntities, enrollments, events := flattenTEIs(allTEIs)

	counts, err := importTrackerBundleOrFallback(ctx, dst, trackedEntities, enrollments, events)
	if err == nil {
		return TrackerResult{Counts: counts, CapApplied: capApplied, UsedUnits: len(orgUnits), LatestDateFilterValue: latest}
	}
	return TrackerResult{Counts: counts, CapApplied: capApplied, UsedUnits: len(orgUnits), Err: err}
}

// latestDateFilterValue resolves attr against every TEI and returns the
// lexicographically greatest non-empty value (ISO 8601 timestamps sort
// correctly as strings). Returns "" when attr is unconfigured or no TEI
// carries it.
func latestDateFilterValue(teis []any, attr DateFilterAttribute) string {
	if attr.AttributeUID == "" {
		return ""
	}
	var latest string
	for _, raw := range teis {
		tei, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, err := ResolveDateFilterValue(tei, attr)
		if err != nil || value == "" {
			continue
		}
		if value > latest {
			latest = value
		}
	}
	return latest
}

// flattenTEIs unpacks each TEI's enrollments and each enrollment's events
// into three parallel lists, per spec.md §4.2 "Tracker".
func flattenTEIs(teis []any) (trackedEntities, enrollments, events []any) {
	for _, raw := range teis {
		tei, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		teiEnrollments, _ := tei["enrollments"].([]any)
		flatTEI := make(map[string]any, len(tei))
		for k, v := range tei {
			if k == "enrollments" {
				continue
			}
			flatTEI[k] = v
		}
		trackedEntities = append(trackedEntities, flatTEI)

		for _, rawEnrollment := range teiEnrollments {
			enrollment, ok := rawEnrollment.(map[string]any)
			if !ok {
				continue
			}
			enrollmentEvents, _ := enrollment["events"].([]any)
			flatEnrollment := make(map[string]any, len(enrollment))
			for k, v := range enrollment {
				if k == "events" {
					continue
				}
				flatEnrollment[k] = v
			}
			enrollments = append(enrollments, flatEnrollment)
			events = append(events, enrollmentEvents...)
		}
	}
	return trackedEntities, enrollments, events
}

// importTrackerBundleOrFallback tries the single-bundle import first; on
// any error it falls back to the three sequential legacy POSTs, wrapping
// each result in the uniform report.Counts shape.
func importTrackerBundleOrFallback(ctx context.Context, dst TrackerDestination, trackedEntities, enrollments, events []any) (report.Counts, error) {
	bundle := map[string]any{
		"trackedEntities": trackedEntities,
		"enrollments":     enrollments,
		"events":          events,
	}
	if body, err := dst.ImportTrackerBundle(ctx, bundle); err == nil {
		bundleCounts := report.ParseTrackerBundle(body)
		var total report.Counts
		for _, c := range bundleCounts {
			total.Add(c)
		}
		return total, nil
	}

	var total report.Counts
	if len(trackedEntities) > 0 {
		body, err := dst.ImportTrackedEntityInstances(ctx, map[string]any{"trackedEntityInstances": trackedEntities})
		if err != nil {
			return total, err
		}
		total.Add(report.Parse(body))
	}
	if len(enrollments) > 0 {
		body, err := dst.ImportEnrollments(ctx, map[string]any{"enrollments": enrollments})
		if err != nil {
			return total, err
		}
		total.Add(report.Parse(body))
	}
	if len(events) > 0 {
		body, err := dst.ImportEvents(ctx, map[string]any{"events": events})
		if err != nil {
			return total, err
		}
		total.Add(report.Parse(body))
	}
	return total, nil
}
