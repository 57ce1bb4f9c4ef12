package review

import (
	"sort"
	"strings"
)

// Merge combines per-aspect reviews (already policy-applied) into one
// summary with a recomputed status.
//
// Merge is pure and deterministic regardless of aspect completion order:
// aspects are walked in name order, questions are de-duplicated preserving
// first-seen order, and findings are sorted on stable keys.
func Merge(scopeID string, reviews map[string]AspectReview) Summary {
	aspects := make([]string, 0, len(reviews))
	for name := range reviews {
		aspects = append(aspects, name)
	}
	sort.Strings(aspects)

	statuses := make(map[string]Status, len(reviews))
	findings := []Finding{}
	questions := []string{}
	var explanations []string
	seen := make(map[string]bool)

	for _, name := range aspects {
		rev := reviews[name]
		if rev.Status != "" {
			statuses[name] = rev.Status
		}
		findings = append(findings, rev.Findings...)
		for _, q := range rev.Questions {
			if q == "" || seen[q] {
				continue
			}
			seen[q] = true
			questions = append(questions, q)
		}
		if exp := strings.TrimSpace(rev.OverallExplanation); exp != "" {
			explanations = append(explanations, "["+name+"] "+exp)
		}
	}

	SortFindings(findings)

	overall := strings.TrimSpace(strings.Join(explanations, "\n"))
	if overall == "" {
		overall = "No issues."
	}

	return Summary{
		SchemaVersion:      SchemaVersion,
		ScopeID:            scopeID,
		Status:             RecomputeStatus(findings, questions),
		AspectStatuses:     statuses,
		Findings:           findings,
		Questions:          questions,
		OverallExplanation: overall,
	}
}
