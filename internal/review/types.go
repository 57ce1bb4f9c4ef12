package review

// SchemaVersion is the wire contract version for aspect reviews and the
// merged summary. Payloads with any other version are rejected.
const SchemaVersion = 3

// Status is an aspect's overall verdict.
type Status string

const (
	StatusApproved     Status = "Approved"
	StatusApprovedNits Status = "Approved with nits"
	StatusBlocked      Status = "Blocked"
	StatusQuestion     Status = "Question"
)

// ValidStatus reports whether s is one of the four allowed verdicts.
func ValidStatus(s Status) bool {
	switch s {
	case StatusApproved, StatusApprovedNits, StatusBlocked, StatusQuestion:
		return true
	}
	return false
}

// Priority is a finding's severity, P0 (worst) through P3.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ValidPriority reports whether p is one of P0..P3.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// PriorityRank returns a sort rank (lower = more severe). Unknown
// priorities rank after P3.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 99
	}
}

// Blocking reports whether p is a P0 or P1 priority.
func Blocking(p Priority) bool {
	return p == PriorityP0 || p == PriorityP1
}

// LineRange is an inclusive 1-based line span with End >= Start.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CodeLocation names the repo-relative file and line span a finding is about.
type CodeLocation struct {
	RepoRelativePath string    `json:"repo_relative_path"`
	LineRange        LineRange `json:"line_range"`
}

// Finding is one claimed issue. Verified and OriginalPriority are set by the
// evidence policy, never by the generation capability.
type Finding struct {
	Title            string       `json:"title"`
	Body             string       `json:"body"`
	Priority         Priority     `json:"priority"`
	CodeLocation     CodeLocation `json:"code_location"`
	Sources          []string     `json:"sources,omitempty"`
	Verified         *bool        `json:"verified,omitempty"`
	OriginalPriority Priority     `json:"original_priority,omitempty"`
}

// AspectReview is the validated output of one aspect. Immutable after
// schema validation.
type AspectReview struct {
	SchemaVersion      int       `json:"schema_version"`
	ScopeID            string    `json:"scope_id"`
	Status             Status    `json:"status"`
	Findings           []Finding `json:"findings"`
	Questions          []string  `json:"questions"`
	OverallExplanation string    `json:"overall_explanation"`
}

// Summary is the merged, post-policy result of a whole run. Created once by
// Merge and never mutated afterward.
type Summary struct {
	SchemaVersion      int               `json:"schema_version"`
	ScopeID            string            `json:"scope_id"`
	Status             Status            `json:"status"`
	AspectStatuses     map[string]Status `json:"aspect_statuses"`
	Findings           []Finding         `json:"findings"`
	Questions          []string          `json:"questions"`
	OverallExplanation string            `json:"overall_explanation"`
}
