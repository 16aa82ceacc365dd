// Package metadata implements the Metadata Pipeline: family/dependency
// ordering, per-resource descriptors, sanitization, and the generic
// fetch -> sanitize -> post driver (spec.md §4.1).
package metadata

// Family is a named group of metadata resources that import together and
// share a dependency slot (spec.md GLOSSARY).
type Family struct {
	Name      string
	Priority  int
	DependsOn []string
	// Members lists the family's resources in fixed per-resource import rank
	// order, reproduced verbatim from the specification's family table.
	Members []string
}

// Families is the verbatim 16-family/priority/dependency/rank table.
// Do not reorder; the rank order within each family is load-bearing.
var Families = []Family{
	{Name: "users", Priority: 1, Members: []string{"userRoles", "users", "userGroups"}},
	{Name: "organisation", Priority: 2, DependsOn: []string{"users"},
		Members: []string{"organisationUnitLevels", "organisationUnits", "organisationUnitGroups", "organisationUnitGroupSets"}},
	{Name: "categories", Priority: 3, DependsOn: []string{"organisation"},
		Members: []string{"categoryOptions", "categories", "categoryCombos", "categoryOptionCombos", "categoryOptionGroups", "categoryOptionGroupSets"}},
	{Name: "options", Priority: 4, Members: []string{"options", "optionSets", "optionGroups", "optionGroupSets"}},
	{Name: "system", Priority: 5, Members: []string{"attributes", "constants"}},
	{Name: "data_elements", Priority: 6, DependsOn: []string{"system", "categories", "options"},
		Members: []string{"dataElements", "dataElementGroups", "dataElementGroupSets"}},
	{Name: "indicators", Priority: 7, DependsOn: []string{"data_elements"},
		Members: []string{"indicatorTypes", "indicators", "indicatorGroups", "indicatorGroupSets"}},
	{Name: "data_sets", Priority: 8, DependsOn: []string{"data_elements", "categories"},
		Members: []string{"dataEntryForms", "dataSets", "dataSetElements", "dataInputPeriods", "dataSetNotificationTemplates"}},
	{Name: "tracker", Priority: 9, DependsOn: []string{"options", "organisation"},
		Members: []string{"trackedEntityTypes", "trackedEntityAttributes", "trackedEntityAttributeGroups"}},
	{Name: "system_misc", Priority: 10, Members: []string{"relationshipTypes"}},
	{Name: "programs", Priority: 11, DependsOn: []string{"tracker", "data_elements", "categories", "system_misc"},
		Members: []string{"programs", "programStages", "programStageSections", "programRuleVariables", "programRules", "programRuleActions", "programIndicators", "programNotificationTemplates"}},
	{Name: "validation", Priority: 12, DependsOn: []string{"data_elements", "programs"},
		Members: []string{"validationRules", "validationRuleGroups", "validationNotificationTemplates"}},
	{Name: "predictors", Priority: 13, DependsOn: []string{"data_elements", "indicators"},
		Members: []string{"predictors", "predictorGroups"}},
	{Name: "legends", Priority: 14, Members: []string{"legends", "legendSets"}},
	{Name: "analytics", Priority: 15, DependsOn: []string{"indicators", "data_elements", "programs", "legends"},
		Members: []string{"maps", "visualizations", "eventReports", "dashboards"}},
	{Name: "misc", Priority: 16, Members: []string{"documents", "interpretations"}},
}

func familyByName(name string) (Family, bool) {
	for _, f := range Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// ResolveClosure computes the transitive closure of selected families (any
// family whose dependencies are unsatisfied pulls them in), then returns the
// closure ordered by priority (spec.md §4.1 "Ordering contract").
func ResolveClosure(selected []string) ([]Family, error) {
	visited := make(map[string]bool)
	var walk func(name string) error
	walk = func(name string) error {
		if visited[name] {
			return nil
		}
		family, ok := familyByName(name)
		if !ok {
			return &UnknownFamilyError{Name: name}
		}
		visited[name] = true
		for _, dep := range family.DependsOn {
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range selected {
		if err := walk(name); err != nil {
			return nil, err
		}
	}

	var closure []Family
	for _, f := range Families {
		if visited[f.Name] {
			closure = append(closure, f)
		}
	}
	return closure, nil
}

// UnknownFamilyError reports a selection naming a family absent from the table.
type UnknownFamilyError struct{ Name string }

func (e *UnknownFamilyError) Error() string {
	return "metadata: unknown family " + e.Name
}
