// Package report normalizes the destination's two import-report shapes
// (legacy importSummary, modern typeReports) into one canonical counter
// tuple, per spec.md §6/§7 and the sum-type guidance in spec.md §9.
package report

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// Counts is the canonical counter tuple every resource/phase rolls up to.
type Counts struct {
	Created int
	Updated int
	Ignored int
	Deleted int
	Errors  int
	// Conflicts carries the destination's verbatim conflict messages for the
	// job log (spec.md §7, "Partial import conflict").
	Conflicts []string
}

// Add accumulates another Counts into the receiver (rollups are additive).
func (c *Counts) Add(other Counts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Ignored += other.Ignored
	c.Deleted += other.Deleted
	c.Errors += other.Errors
	c.Conflicts = append(c.Conflicts, other.Conflicts...)
}

// Total is the number of objects the destination accounted for.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Ignored + c.Deleted
}

// Parse detects the response shape and extracts canonical Counts. It
// tolerates either shape being absent (e.g. an empty 200 OK) by returning a
// zero Counts.
func Parse(body []byte) Counts {
	root := gjson.ParseBytes(body)

	if summary := root.Get("response.importSummary"); summary.Exists() {
		return parseLegacy(summary)
	}
	// Some endpoints (e.g. dataValueSets) return the importCount directly.
	if summary := root.Get("importCount"); summary.Exists() {
		return parseImportCount(root)
	}
	if reports := root.Get("response.typeReports"); reports.Exists() {
		return parseModern(reports)
	}
	return Counts{}
}

func parseImportCount(root gjson.Result) Counts {
	ic := root.Get("importCount")
	counts := Counts{
		Created: int(ic.Get("imported").Int()),
		Updated: int(ic.Get("updated").Int()),
		Ignored: int(ic.Get("ignored").Int()),
		Deleted: int(ic.Get("deleted").Int()),
	}
	for _, conflict := range root.Get("conflicts").Array() {
		counts.Errors++
		counts.Conflicts = append(counts.Conflicts, conflict.Raw)
	}
	return counts
}

func parseLegacy(summary gjson.Result) Counts {
	ic := summary.Get("importCount")
	counts := Counts{
		Created: int(ic.Get("imported").Int()),
		Updated: int(ic.Get("updated").Int()),
		Ignored: int(ic.Get("ignored").Int()),
		Deleted: int(ic.Get("deleted").Int()),
	}
	for _, conflict := range summary.Get("conflicts").Array() {
		counts.Errors++
		object := conflict.Get("object").String()
		value := conflict.Get("value").String()
		if object != "" || value != "" {
			counts.Conflicts = append(counts.Conflicts, object+": "+value)
		} else {
			counts.Conflicts = append(counts.Conflicts, conflict.Raw)
		}
	}
	return counts
}

func parseModern(reports gjson.Result) Counts {
	var counts Counts
	for _, tr := range reports.Array() {
		stats := tr.Get("stats")
		counts.Created += int(stats.Get("created").Int())
		counts.Updated += int(stats.Get("updated").Int())
		counts.Ignored += int(stats.Get("ignored").Int())
		counts.Deleted += int(stats.Get("deleted").Int())
		for _, obj := range tr.Get("objectReports").Array() {
			for _, errRep := range obj.Get("errorReports").Array() {
				counts.Errors++
				msg := errRep.Get("message").String()
				if msg == "" {
					msg = errRep.Raw
				}
				counts.Conflicts = append(counts.Conflicts, msg)
			}
		}
	}
	return counts
}

// ParseTrackerBundle extracts the three per-type Counts from a tracker
// bundle report (spec.md §6, "Tracker bundle report").
func ParseTrackerBundle(body []byte) map[string]Counts {
	root := gjson.ParseBytes(body)
	typeMap := root.Get("bundleReport.typeReportMap")
	result := make(map[string]Counts)
	typeMap.ForEach(func(key, value gjson.Result) bool {
		stats := value.Get("stats")
		c := Counts{
			Created: int(stats.Get("created").Int()),
			Updated: int(stats.Get("updated").Int()),
			Ignored: int(stats.Get("ignored").Int()),
			Deleted: int(stats.Get("deleted").Int()),
		}
		for _, obj := range value.Get("objectReports").Array() {
			for _, errRep := range obj.Get("errorReports").Array() {
				c.Errors++
				msg := errRep.Get("message").String()
				if msg == "" {
					msg = errRep.Raw
				}
				c.Conflicts = append(c.Conflicts, msg)
			}
		}
		result[key.String()] = c
		return true
	})
	return result
}

// SummaryLine renders the fixed-format job log line from spec.md §4.1:
// "✓ <resource>: Source=<n> | Created=<c>, Updated=<u> | Ignored=<i> | Errors=<e>, Warnings=<w>"
func SummaryLine(resource string, sourceCount int, c Counts, warnings int) string {
	itoa := strconv.Itoa
	return "✓ " + resource + ": Source=" + itoa(sourceCount) +
		" | Created=" + itoa(c.Created) + ", Updated=" + itoa(c.Updated) +
		" | Ignored=" + itoa(c.Ignored) +
		" | Errors=" + itoa(c.Errors) + ", Warnings=" + itoa(warnings)
}
