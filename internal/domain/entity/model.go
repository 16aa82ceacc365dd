// Package entity models the per-configuration resource selection and
// per-destination-version field metadata the original implementation
// persisted alongside a SyncConfiguration (DHIS2Entity/DHIS2EntityVersion),
// dropped from the distilled spec's data model but still useful for
// per-resource sync bookkeeping and cross-version field selection.
package entity

import (
	"strings"
	"time"

	"github.com/his-sync/replicator/internal/metadata"
)

// SyncStatus records the outcome of the most recent attempt to sync one
// selected entity.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
	StatusSkipped SyncStatus = "skipped"
)

// SelectedEntity is one metadata resource instance chosen for inclusion in a
// configuration's sync, carrying its own import order and last outcome
// independent of the resource-level Descriptor.
type SelectedEntity struct {
	ID               string
	ConfigurationID  string
	EntityType       string // a metadata resource name, e.g. "dataElements"
	DHIS2UID         string
	Name             string
	DisplayName      string
	IsSelected       bool
	ImportOrder      int
	LastSynchronized time.Time
	SyncStatus       SyncStatus
	SyncErrorMessage string
	// FieldMapping renames a source field to its destination equivalent,
	// for resources whose attribute names diverge across HIS versions.
	FieldMapping map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ImportOrderFor derives a SelectedEntity's default import order from the
// resource's family priority and its fixed rank within that family's
// Members list, so entity-level ordering never drifts from the pipeline's
// own family/rank table.
func ImportOrderFor(entityType string) int {
	for _, family := range metadata.Families {
		for rank, member := range family.Members {
			if member == entityType {
				return family.Priority*100 + rank
			}
		}
	}
	return 0
}

// EntityVersionInfo records the API shape one metadata resource had on one
// HIS server version: which fields it supports, its page size ceiling, and
// its import capabilities. Resolved once per (version, resource) pair and
// reused across every configuration syncing against that destination
// version.
type EntityVersionInfo struct {
	ID                 string
	DHIS2Version       string
	EntityType         string
	APIEndpoint        string
	APIPath            string
	SupportedFields    []string
	RequiredFields     []string
	DeprecatedFields   []string
	NewFields          []string
	MaxPageSize        int
	SupportsPaging     bool
	SupportsBulkImport bool
	SupportsUpsert     bool
	ImportStrategy     string
	IsActive           bool
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FieldsSelection builds the resource's "fields=" query value for this
// version from SupportedFields, so an older destination that dropped or
// never had a field never gets asked for it. Returns "" when no supported
// fields are recorded, signaling the caller to fall back to the resource's
// default Descriptor.Fields.
func (v EntityVersionInfo) FieldsSelection() string {
	if len(v.SupportedFields) == 0 {
		return ""
	}
	return strings.Join(v.SupportedFields, ",")
}
