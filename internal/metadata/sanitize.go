package metadata

import "strings"

// sanitizeSharingOnly drops sharing entries that name a user or user-group
// absent from the destination's directory, handling both shapes the sharing
// sub-structure may take (spec.md "Sanitization rules").
func sanitizeSharingOnly(obj map[string]any, ctx SanitizeContext) {
	sharing, ok := obj["sharing"].(map[string]any)
	if !ok {
		return
	}
	filterDictForm(sharing, "users", ctx.DestinationUserIDs)
	filterDictForm(sharing, "userGroups", ctx.DestinationUserGroupIDs)
	filterAccessListForm(sharing, "userAccesses", ctx.DestinationUserIDs, "id")
	filterAccessListForm(sharing, "userGroupAccesses", ctx.DestinationUserGroupIDs, "id")
}

// filterDictForm handles the dict-keyed sharing shape: {"users": {"<id>":
// {...}}}.
func filterDictForm(sharing map[string]any, key string, allowed map[string]bool) {
	entries, ok := sharing[key].(map[string]any)
	if !ok {
		return
	}
	for id := range entries {
		if !allowed[id] {
			delete(entries, id)
		}
	}
}

// filterAccessListForm handles the list-of-access-objects sharing shape:
// {"userAccesses": [{"id": "...", "access": "..."}]}.
func filterAccessListForm(sharing map[string]any, key string, allowed map[string]bool, idField string) {
	list, ok := sharing[key].([]any)
	if !ok {
		return
	}
	kept := list[:0]
	for _, entry := range list {
		access, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id, _ := access[idField].(string)
		if allowed[id] {
			kept = append(kept, entry)
		}
	}
	sharing[key] = kept
}

// defaultRoleKeywords are tried in order when a user would otherwise be left
// with no roles on the destination (spec.md "Sanitization rules").
var defaultRoleKeywords = []string{"data entry", "user", "basic"}

// sanitizeUser applies sharing cleanup plus the user-role-reference rule:
// drop role references the destination lacks, and if that empties a user's
// role set, inject one default role.
func sanitizeUser(obj map[string]any, ctx SanitizeContext) {
	sanitizeSharingOnly(obj, ctx)

	roles, _ := obj["userRoles"].([]any)
	var kept []any
	for _, r := range roles {
		roleObj, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id, _ := roleObj["id"].(string)
		if ctx.DestinationRoleIDs[id] {
			kept = append(kept, roleObj)
		}
	}
	if len(kept) == 0 {
		if fallback, ok := pickDefaultRole(ctx); ok {
			kept = []any{map[string]any{"id": fallback}}
		}
	}
	obj["userRoles"] = kept
}

// pickDefaultRole selects a destination role whose name contains one of
// defaultRoleKeywords (first match wins), falling back to any available
// role if none match.
func pickDefaultRole(ctx SanitizeContext) (string, bool) {
	for _, keyword := range defaultRoleKeywords {
		for id, name := range ctx.DestinationRoleNames {
			if strings.Contains(strings.ToLower(name), keyword) {
				return id, true
			}
		}
	}
	for id := range ctx.DestinationRoleIDs {
		return id, true
	}
	return "", false
}

// visualizationProxyErrorFields lists reference fields known to trip
// destination-side proxy errors (e.g. detached category combos).
var visualizationProxyErrorFields = []string{"categoryCombo", "columns", "filters"}

// sanitizeVisualization strips references known to cause destination-side
// proxy errors. The pipeline posts this family's resources with
// skipSharing=true (see RequiresSkipSharing), since that is a POST query
// parameter rather than a payload field.
func sanitizeVisualization(obj map[string]any, ctx SanitizeContext) {
	sanitizeSharingOnly(obj, ctx)
	if combo, ok := obj["categoryCombo"].(map[string]any); ok {
		if id, _ := combo["id"].(string); id == "" {
			delete(obj, "categoryCombo")
		}
	}
}

// RequiresSkipSharing reports whether resource must be imported with
// skipSharing=true (spec.md "Sanitization rules").
func RequiresSkipSharing(resource string) bool {
	switch resource {
	case "visualizations", "maps", "eventReports":
		return true
	default:
		return false
	}
}
