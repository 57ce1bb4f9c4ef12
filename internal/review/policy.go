package review

import (
	"sort"

	"github.com/facetlabs/facet/internal/bundle"
)

// PolicyStats summarizes what the evidence policy did to one set of findings.
type PolicyStats struct {
	SchemaVersion          int            `json:"schema_version"`
	TotalIn                int            `json:"total_in"`
	TotalOut               int            `json:"total_out"`
	VerifiedCount          int            `json:"verified_true_count"`
	ExcludedCount          int            `json:"excluded_count"`
	DowngradedCount        int            `json:"downgraded_count"`
	UnverifiedReasonCounts map[string]int `json:"unverified_reason_counts"`
}

// ApplyPolicy verifies each finding against the bundle index and applies the
// exclude/downgrade policy.
//
// A verified finding passes through unchanged apart from verified=true. An
// unverified P0/P1/P2 finding is excluded outright when it offered no
// sources at all (missing_sources gets no benefit of the doubt) and
// downgraded to P3 otherwise, with its original priority recorded. An
// unverified P3 is kept as-is. Priorities are only ever lowered.
func ApplyPolicy(findings []Finding, idx bundle.Index) ([]Finding, PolicyStats) {
	stats := PolicyStats{
		SchemaVersion:          1,
		TotalIn:                len(findings),
		UnverifiedReasonCounts: map[string]int{},
	}

	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		verified, reason := VerifyFinding(f, idx)
		if verified {
			stats.VerifiedCount++
		} else {
			stats.UnverifiedReasonCounts[reason]++
		}

		f.Verified = boolPtr(verified)

		if !verified && f.Priority != PriorityP3 && ValidPriority(f.Priority) {
			if reason == ReasonMissingSources {
				stats.ExcludedCount++
				continue
			}
			if f.OriginalPriority == "" {
				f.OriginalPriority = f.Priority
			}
			f.Priority = PriorityP3
			stats.DowngradedCount++
		}

		out = append(out, f)
	}

	stats.TotalOut = len(out)
	return out, stats
}

// RecomputeStatus derives a status purely from post-policy findings and
// questions; an aspect's self-reported status never feeds the summary.
func RecomputeStatus(findings []Finding, questions []string) Status {
	for _, f := range findings {
		if Blocking(f.Priority) {
			return StatusBlocked
		}
	}
	if len(questions) > 0 {
		return StatusQuestion
	}
	if len(findings) > 0 {
		return StatusApprovedNits
	}
	return StatusApproved
}

// SortFindings orders findings by (priority rank, path, start line, title).
// The sort is stable so equal keys keep their merge order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := PriorityRank(a.Priority), PriorityRank(b.Priority); ra != rb {
			return ra < rb
		}
		if a.CodeLocation.RepoRelativePath != b.CodeLocation.RepoRelativePath {
			return a.CodeLocation.RepoRelativePath < b.CodeLocation.RepoRelativePath
		}
		if a.CodeLocation.LineRange.Start != b.CodeLocation.LineRange.Start {
			return a.CodeLocation.LineRange.Start < b.CodeLocation.LineRange.Start
		}
		return a.Title < b.Title
	})
}

func boolPtr(b bool) *bool { return &b }
