package metadata

// Descriptor is the closed, per-resource definition driving the generic
// pipeline: which family it belongs to, what fields to request, and how to
// sanitize a fetched object (spec.md §4.1 "Per-resource operation").
type Descriptor struct {
	Name   string
	Family string
	// Fields is the resource-specific field-selection string sent as the
	// source GET's "fields" query parameter.
	Fields string
	// Sanitize mutates one fetched object in place before it is queued for
	// import, given the destination's known users/userGroups sets.
	Sanitize func(obj map[string]any, ctx SanitizeContext)
}

// SanitizeContext carries the destination-side reference sets a Descriptor's
// Sanitize function needs (spec.md "Sanitization rules").
type SanitizeContext struct {
	DestinationUserIDs      map[string]bool
	DestinationUserGroupIDs map[string]bool
	DestinationRoleIDs      map[string]bool
	DestinationRoleNames    map[string]string // id -> name, for default-role selection
}

// descriptorsByName holds every resource's Descriptor, keyed by resource
// name, covering every member of every Family in the verbatim table.
var descriptorsByName = buildDescriptors()

// DescriptorFor looks up the closed descriptor for a resource name.
func DescriptorFor(resource string) (Descriptor, bool) {
	d, ok := descriptorsByName[resource]
	return d, ok
}

func buildDescriptors() map[string]Descriptor {
	m := make(map[string]Descriptor)
	for _, family := range Families {
		for _, resource := range family.Members {
			m[resource] = Descriptor{
				Name:     resource,
				Family:   family.Name,
				Fields:   fieldsFor(resource),
				Sanitize: sanitizeFor(resource),
			}
		}
	}
	return m
}

// fieldsFor returns the resource-specific field-selection string. Resources
// carrying a sharing sub-object request it explicitly; everything else
// requests identifiers, name/code, and one level of child references.
func fieldsFor(resource string) string {
	const base = ":owner,id,name,code,lastUpdated"
	switch resource {
	case "users":
		return base + ",username,userCredentials[id,username,userRoles[id]],userRoles[id,name],organisationUnits[id],sharing"
	case "userRoles", "userGroups":
		return base + ",sharing"
	case "organisationUnits":
		return base + ",shortName,level,parent[id],path,sharing"
	case "dataElements", "indicators", "dataSets", "programs", "programIndicators":
		return base + ",shortName,sharing,*"
	case "maps", "visualizations", "eventReports", "dashboards":
		return base + ",sharing,*"
	default:
		return base + ",*"
	}
}

// sanitizeFor returns the Sanitize hook appropriate to the resource, per the
// three named rules; resources outside those rules only get sharing
// cleanup, since every resource in the table may carry a sharing sub-object.
func sanitizeFor(resource string) func(map[string]any, SanitizeContext) {
	switch resource {
	case "users":
		return sanitizeUser
	case "visualizations", "maps", "eventReports":
		return sanitizeVisualization
	default:
		return sanitizeSharingOnly
	}
}
