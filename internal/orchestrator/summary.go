package orchestrator

import (
	"strconv"
	"strings"

	"github.com/his-sync/replicator/internal/domain/job"
	"github.com/his-sync/replicator/internal/domain/report"
)

// phaseOutcome is one pipeline invocation's normalized result: how many
// resources/units it attempted, how many succeeded outright, and the rolled
// up import counts, ready for the Job's counters and summary block (spec.md
// §4.3 steps 4-5).
type phaseOutcome struct {
	name             string
	attempted        int
	succeeded        int
	resourceFailures int
	sourceCount      int
	counts           report.Counts
	lines            []string
	err              error
}

// catastrophic reports whether every attempted unit of this phase failed
// outright (no objects reached the destination at all).
func (o phaseOutcome) catastrophic() bool {
	return o.attempted > 0 && o.succeeded == 0
}

// hasWarnings reports whether the phase made partial progress: at least one
// unit succeeded but some failed, or the destination itself reported errors.
func (o phaseOutcome) hasWarnings() bool {
	return o.resourceFailures > 0 || o.counts.Errors > 0
}

// applyOutcome folds one phase's result into the Job's running counters.
func applyOutcome(j *job.Job, o phaseOutcome) {
	j.TotalItems += o.sourceCount + o.counts.Total()
	j.ProcessedItems += o.counts.Total()
	j.SuccessCount += o.counts.Created + o.counts.Updated
	j.ErrorCount += o.counts.Errors + o.resourceFailures
	if o.err != nil {
		j.ErrorCount++
	}
}

// finalStatus applies spec.md §4.3 step 4's decision: COMPLETED if every
// phase reports zero errors; COMPLETED_WITH_WARNINGS if some phase errored
// but at least one object imported anywhere; FAILED if every requested
// phase failed catastrophically.
func finalStatus(outcomes []phaseOutcome) job.Status {
	if len(outcomes) == 0 {
		return job.StatusCompleted
	}

	allCatastrophic := true
	anyImported := false
	anyWarning := false
	for _, o := range outcomes {
		if !o.catastrophic() {
			allCatastrophic = false
		}
		if o.succeeded > 0 {
			anyImported = true
		}
		if o.hasWarnings() || o.err != nil {
			anyWarning = true
		}
	}

	switch {
	case allCatastrophic:
		return job.StatusFailed
	case anyWarning:
		return job.StatusCompletedWithWarnings
	case anyImported:
		return job.StatusCompleted
	default:
		return job.StatusCompleted
	}
}

// summaryBlock renders the fixed-form single summary block appended to the
// Job log (spec.md §4.3 step 5), with each metadata resource's line plus one
// per-phase totals line for the data phases.
func summaryBlock(outcomes []phaseOutcome) string {
	var b strings.Builder
	b.WriteString("=== sync summary ===")
	var grand report.Counts
	var grandSource int
	for _, o := range outcomes {
		for _, line := range o.lines {
			b.WriteString("\n")
			b.WriteString(line)
		}
		if o.name != "metadata" {
			b.WriteString("\n")
			b.WriteString(report.SummaryLine(o.name, o.sourceCount, o.counts, 0))
		}
		grand.Add(o.counts)
		grandSource += o.sourceCount
	}
	b.WriteString("\ntotal: ")
	b.WriteString(strconv.Itoa(grand.Total()))
	b.WriteString(" objects processed, ")
	b.WriteString(strconv.Itoa(grand.Errors))
	b.WriteString(" errors")
	return b.String()
}
