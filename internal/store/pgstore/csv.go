package pgstore

import "strings"

func joinCSV(values []string) string {
	return strings.Join(values, ",")
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
