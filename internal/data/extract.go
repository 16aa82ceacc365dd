package data

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// extractDataValues pulls the "dataValues" array out of an aggregate fetch
// response body.
func extractDataValues(body []byte) []any {
	return extractArray(body, "dataValues")
}

// extractEvents pulls the "events" array out of an events fetch response.
func extractEvents(body []byte) []any {
	return extractArray(body, "events")
}

// extractArray decodes a named JSON array field into a slice of decoded
// elements, tolerating an absent or empty body.
func extractArray(body []byte, field string) []any {
	if len(body) == 0 {
		return nil
	}
	result := gjson.GetBytes(body, field)
	if !result.IsArray() {
		return nil
	}
	var items []any
	for _, item := range result.Array() {
		var decoded any
		if err := json.Unmarshal([]byte(item.Raw), &decoded); err == nil {
			items = append(items, decoded)
		}
	}
	return items
}
