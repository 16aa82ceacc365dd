// Package data implements the Data Pipeline's three sub-pipelines:
// aggregate values, events, and tracker bundles (spec.md §4.2).
package data

import (
	"context"
	"time"

	"github.com/his-sync/replicator/internal/domain/report"
)

// DefaultAggregateChunkSize is the contractual default import chunk size for
// aggregate data values; tunable per import call.
const DefaultAggregateChunkSize = 1000

// AggregateSource fetches raw aggregate data payloads from the source.
type AggregateSource interface {
	FetchAggregateData(ctx context.Context, dataSet string, orgUnits []string, start, end time.Time) ([]byte, error)
}

// AggregateDestination imports an aggregate data-value chunk at the
// destination.
type AggregateDestination interface {
	ImportAggregateData(ctx context.Context, payload any) ([]byte, error)
}

// AggregateRequest carries the optional filters spec.md §4.2 allows: org
// units, data sets, and a date window. Data sets are not resolved here: an
// empty DataSets list fetches nothing. Empty OrgUnits sends no orgUnit
// parameter with each data-set fetch.
type AggregateRequest struct {
	DataSets  []string
	OrgUnits  []string
	StartDate time.Time
	EndDate   time.Time
	ChunkSize int
}

// AggregateResult is the consolidated outcome of one aggregate sync: one
// count of imported/updated/ignored/deleted and one flat conflict list,
// rolled up across all chunks.
type AggregateResult struct {
	Counts report.Counts
	Err    error
}

// SyncAggregate fetches aggregate data values for each requested data set
// and imports them to the destination in chunks of req.ChunkSize (default
// DefaultAggregateChunkSize), consolidating per-chunk reports.
func SyncAggregate(ctx context.Context, src AggregateSource, dst AggregateDestination, req AggregateRequest) AggregateResult {
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultAggregateChunkSize
	}

	var total report.Counts
	for _, dataSet := range req.DataSets {
		body, err := src.FetchAggregateData(ctx, dataSet, req.OrgUnits, req.StartDate, req.EndDate)
		if err != nil {
			return AggregateResult{Counts: total, Err: err}
		}
		values := extractDataValues(body)
		for _, chunk := range chunkValues(values, chunkSize) {
			payload := map[string]any{"dataValues": chunk}
			respBody, err := dst.ImportAggregateData(ctx, payload)
			if err != nil {
				return AggregateResult{Counts: total, Err: err}
			}
			total.Add(report.Parse(respBody))
		}
	}
	return AggregateResult{Counts: total}
}

func chunkValues(values []any, size int) [][]any {
	var chunks [][]any
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}
