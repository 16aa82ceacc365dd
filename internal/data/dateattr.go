package data

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"
)

// DateFilterAttribute is a per-program choice of which tracked-entity
// attribute feeds the lastUpdated filter for tracker extraction: the
// original implementation let operators configure this per source
// instance/program rather than hard-coding a single attribute uid.
type DateFilterAttribute struct {
	ProgramUID        string
	AttributeUID      string
	AttributeName     string
	// FilterType distinguishes a plain equality/date-range filter from a
	// "greater than" incremental filter.
	FilterType string
}

// attributeValuePath builds the JSONPath query selecting one tracked-entity
// attribute's value out of a TEI's open-ended "attributes" array, given the
// configured attribute uid.
func attributeValuePath(attributeUID string) string {
	return fmt.Sprintf(`$.attributes[?(@.attribute=="%s")].value`, attributeUID)
}

// ResolveDateFilterValue pulls attr's configured attribute value out of one
// tracked entity instance's JSON document. The TEI schema is controlled by
// the source HIS, not by us, so a JSONPath query is used instead of a typed
// struct field.
func ResolveDateFilterValue(tei map[string]any, attr DateFilterAttribute) (string, error) {
	result, err := jsonpath.Get(attributeValuePath(attr.AttributeUID), tei)
	if err != nil {
		return "", fmt.Errorf("resolve date filter attribute %s: %w", attr.AttributeUID, err)
	}
	values, ok := result.([]any)
	if !ok || len(values) == 0 {
		return "", nil
	}
	value, _ := values[0].(string)
	return value, nil
}
