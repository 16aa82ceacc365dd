package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/his-sync/replicator/internal/domain/report"
	"github.com/his-sync/replicator/internal/hisapi"
	"github.com/his-sync/replicator/pkg/logger"
)

// SourceReader fetches paged metadata from the source instance. *hisapi.Client
// satisfies this directly.
type SourceReader interface {
	FetchMetadataPage(ctx context.Context, resource, fields string, page, pageSize int) (hisapi.MetadataPage, error)
}

// DestinationWriter imports a sanitized resource payload at the destination.
// *hisapi.Client satisfies this directly.
type DestinationWriter interface {
	ImportMetadata(ctx context.Context, resource, mergeMode, importStrategy string, skipSharing bool, payload any) ([]byte, error)
}

// ResourceResult is one resource's outcome, ready to roll up into a family
// and job-level summary (spec.md §4.1 "Result aggregation").
type ResourceResult struct {
	Resource    string
	SourceCount int
	Counts      report.Counts
	SummaryLine string
	Err         error
}

// SyncOptions carries the per-job configuration the generic driver needs.
type SyncOptions struct {
	MergeMode      string
	ImportStrategy string
	PageSize       int
	SanitizeCtx    SanitizeContext
	// FieldsOverride maps a resource name to the "fields=" selection string
	// resolved for the destination's HIS version, used in place of the
	// resource's Descriptor.Fields when present (older destinations may
	// lack fields a newer Descriptor always requests).
	FieldsOverride map[string]string
}

// SyncResource performs the fetch -> sanitize -> post cycle for one resource
// across all of its source pages, per spec.md §4.1 "Per-resource operation"
// and "Failure policy".
func SyncResource(ctx context.Context, src SourceReader, dst DestinationWriter, resource string, opts SyncOptions, log *logger.Logger) ResourceResult {
	descriptor, ok := DescriptorFor(resource)
	if !ok {
		return ResourceResult{Resource: resource, Err: fmt.Errorf("metadata: no descriptor for resource %q", resource)}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	fields := descriptor.Fields
	if override, ok := opts.FieldsOverride[resource]; ok && override != "" {
		fields = override
	}

	var (
		objects []map[string]any
		page    = 1
	)
	for {
		fetched, err := src.FetchMetadataPage(ctx, resource, fields, page, pageSize)
		if err != nil {
			// A failed page stops this resource only; the pipeline moves on
			// to the next resource (spec.md "Failure policy").
			if log != nil {
				log.WithField("resource", resource).WithError(err).Warn("metadata page fetch failed")
			}
			return ResourceResult{Resource: resource, Err: err}
		}
		batch := extractObjects(fetched.Body, resource)
		objects = append(objects, batch...)
		if !fetched.HasNext || len(batch) == 0 {
			break
		}
		page++
	}

	for _, obj := range objects {
		if descriptor.Sanitize != nil {
			descriptor.Sanitize(obj, opts.SanitizeCtx)
		}
	}

	if len(objects) == 0 {
		return ResourceResult{
			Resource:    resource,
			SourceCount: 0,
			SummaryLine: report.SummaryLine(resource, 0, report.Counts{}, 0),
		}
	}

	skipSharing := RequiresSkipSharing(resource)
	body, err := dst.ImportMetadata(ctx, resource, opts.MergeMode, opts.ImportStrategy, skipSharing, objects)
	if err != nil {
		if log != nil {
			log.WithField("resource", resource).WithError(err).Warn("metadata import failed")
		}
		return ResourceResult{Resource: resource, SourceCount: len(objects), Err: err}
	}

	counts := report.Parse(body)
	// The destination's import report carries no distinct warning count;
	// conflicts are surfaced as errors instead (report.Parse).
	return ResourceResult{
		Resource:    resource,
		SourceCount: len(objects),
		Counts:      counts,
		SummaryLine: report.SummaryLine(resource, len(objects), counts, 0),
	}
}

// extractObjects pulls the resource's array out of a DHIS2-style paged
// response body ({"<resource>": [...], "pager": {...}}).
func extractObjects(body []byte, resource string) []map[string]any {
	if len(body) == 0 {
		return nil
	}
	arr := gjson.GetBytes(body, resource)
	if !arr.IsArray() {
		return nil
	}
	var objects []map[string]any
	for _, item := range arr.Array() {
		var obj map[string]any
		if err := json.Unmarshal([]byte(item.Raw), &obj); err == nil {
			objects = append(objects, obj)
		}
	}
	return objects
}
