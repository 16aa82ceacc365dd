package hisapi

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// FetchAggregateData pulls aggregate data values for the given data set and
// org units within [start, end] (spec.md §4.2 "Aggregate Data Pipeline").
func (c *Client) FetchAggregateData(ctx context.Context, dataSet string, orgUnits []string, start, end time.Time) ([]byte, error) {
	query := url.Values{}
	query.Set("dataSet", dataSet)
	for _, ou := range orgUnits {
		query.Add("orgUnit", ou)
	}
	query.Set("startDate", start.Format(dateLayout))
	query.Set("endDate", end.Format(dateLayout))

	body, err := c.get(ctx, "dataValueSets.json", query)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return body, nil
}

// ImportAggregateData posts aggregate data values to the destination,
// chunked by the caller per spec.md §5 (1000 values per request, tunable).
func (c *Client) ImportAggregateData(ctx context.Context, payload any) ([]byte, error) {
	query := url.Values{}
	query.Set("async", "false")
	return c.post(ctx, "dataValueSets.json", query, payload)
}

// FetchEvents pulls program events for a program/org unit within a date
// window, paged by the caller (spec.md §4.2 "Event Pipeline").
func (c *Client) FetchEvents(ctx context.Context, program, orgUnit string, start, end time.Time, page, pageSize int) ([]byte, bool, error) {
	query := url.Values{}
	query.Set("program", program)
	if orgUnit != "" {
		query.Set("orgUnit", orgUnit)
	}
	query.Set("occurredAfter", start.Format(dateLayout))
	query.Set("occurredBefore", end.Format(dateLayout))
	query.Set("page", intParam(page))
	query.Set(PageSizeParam, intParam(pageSize))
	query.Set("paging", "true")

	body, err := c.get(ctx, "events.json", query)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return body, pagerHasNext(body), nil
}

// ImportEvents posts a chunk of events to the destination (500 per request
// by default per spec.md §5).
func (c *Client) ImportEvents(ctx context.Context, payload any) ([]byte, error) {
	query := url.Values{}
	query.Set("async", "false")
	query.Set("strategy", "CREATE_AND_UPDATE")
	return c.post(ctx, "events.json", query, payload)
}

// FetchTrackerBundle pulls tracked entities + enrollments + events bundled
// for a program across the given org units (spec.md §4.2 "Tracker
// Pipeline"). orgUnits is capped by the caller per the configurable tracker
// org-unit limit.
func (c *Client) FetchTrackerBundle(ctx context.Context, program string, orgUnits []string, start, end time.Time, page, pageSize int) ([]byte, bool, error) {
	query := url.Values{}
	query.Set("program", program)
	query.Set("ouMode", "SELECTED")
	query.Set("orgUnit", strings.Join(orgUnits, ";"))
	query.Set("updatedAfter", start.Format(dateLayout))
	query.Set("updatedBefore", end.Format(dateLayout))
	query.Set("fields", "*")
	query.Set("page", intParam(page))
	query.Set(PageSizeParam, intParam(pageSize))
	query.Set("paging", "true")

	body, err := c.get(ctx, "trackedEntityInstances.json", query)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return body, pagerHasNext(body), nil
}

// ImportTrackerBundle posts a single bundle {trackedEntities, enrollments,
// events} to the destination's modern tracker endpoint. Callers fall back to
// the three legacy POSTs (ImportTrackedEntityInstances, ImportEnrollments,
// ImportEvents) when this endpoint errors (spec.md §4.2 "Tracker").
func (c *Client) ImportTrackerBundle(ctx context.Context, payload any) ([]byte, error) {
	query := url.Values{}
	query.Set("async", "false")
	return c.post(ctx, "tracker.json", query, payload)
}

// ImportTrackedEntityInstances is the first step of the legacy tracker
// import fallback.
func (c *Client) ImportTrackedEntityInstances(ctx context.Context, payload any) ([]byte, error) {
	query := url.Values{}
	query.Set("strategy", "CREATE_AND_UPDATE")
	return c.post(ctx, "trackedEntityInstances.json", query, payload)
}

// ImportEnrollments is the second step of the legacy tracker import fallback.
func (c *Client) ImportEnrollments(ctx context.Context, payload any) ([]byte, error) {
	query := url.Values{}
	query.Set("strategy", "CREATE_AND_UPDATE")
	return c.post(ctx, "enrollments.json", query, payload)
}
