package review

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
)

// maxRenderedViolations bounds how many violations a validation error names;
// the remainder is reported as a count.
const maxRenderedViolations = 8

var topLevelKeys = map[string]bool{
	"schema_version":      true,
	"scope_id":            true,
	"status":              true,
	"findings":            true,
	"questions":           true,
	"overall_explanation": true,
}

var findingKeys = map[string]bool{
	"title":         true,
	"body":          true,
	"priority":      true,
	"code_location": true,
	"sources":       true,
}

// Validate checks a raw capability payload against the AspectReview contract
// and returns the typed review. The raw payload is never consumed by any
// other code path; validation is the only transition from untyped to typed.
//
// Any violation is an execution failure naming up to 8 concrete problems
// plus a count of the remainder. Validation never coerces or drops data.
func Validate(raw json.RawMessage, expectedScopeID string) (AspectReview, error) {
	var root map[string]any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return AspectReview{}, errs.ExecFailure("review JSON must be an object")
	}

	if scope, _ := root["scope_id"].(string); expectedScopeID != "" && scope != expectedScopeID {
		return AspectReview{}, errs.ExecFailure("scope_id mismatch: expected %s, got %v", expectedScopeID, root["scope_id"])
	}

	v := &violations{}
	checkReviewObject(root, v)

	if len(v.list) > 0 {
		return AspectReview{}, errs.ExecFailure("review JSON validation failed: %s", v.render())
	}

	var rev AspectReview
	if err := json.Unmarshal(raw, &rev); err != nil {
		return AspectReview{}, errs.ExecFailureWrap(err, "review JSON decode")
	}
	return rev, nil
}

type violations struct {
	list []string
}

func (v *violations) addf(format string, args ...any) {
	v.list = append(v.list, fmt.Sprintf(format, args...))
}

func (v *violations) render() string {
	n := len(v.list)
	shown := v.list
	if n > maxRenderedViolations {
		shown = v.list[:maxRenderedViolations]
	}
	out := strings.Join(shown, "; ")
	if n > maxRenderedViolations {
		out += fmt.Sprintf(" (+%d more)", n-maxRenderedViolations)
	}
	return out
}

func checkReviewObject(root map[string]any, v *violations) {
	for _, key := range sortedKeys(root) {
		if !topLevelKeys[key] {
			v.addf("$.%s: unknown key", key)
		}
	}
	for key := range topLevelKeys {
		if _, ok := root[key]; !ok {
			v.addf("$.%s: required key missing", key)
		}
	}

	if raw, ok := root["schema_version"]; ok {
		if n, isInt := asInt(raw); !isInt || n != SchemaVersion {
			v.addf("$.schema_version: must be %d", SchemaVersion)
		}
	}
	if raw, ok := root["scope_id"]; ok {
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			v.addf("$.scope_id: must be a non-empty string")
		}
	}

	var status Status
	if raw, ok := root["status"]; ok {
		s, isStr := raw.(string)
		if !isStr || !ValidStatus(Status(s)) {
			v.addf("$.status: must be one of Approved, Approved with nits, Blocked, Question")
		} else {
			status = Status(s)
		}
	}

	findingCount, blockingCount := checkFindings(root["findings"], v)
	questionCount := checkQuestions(root["questions"], v)

	if raw, ok := root["overall_explanation"]; ok {
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			v.addf("$.overall_explanation: must be a non-empty string")
		}
	}

	// Cross-field rules bind the self-reported status to the payload content.
	switch status {
	case StatusApproved:
		if findingCount > 0 {
			v.addf("$.status: Approved requires zero findings")
		}
		if questionCount > 0 {
			v.addf("$.status: Approved requires zero questions")
		}
	case StatusApprovedNits:
		if blockingCount > 0 {
			v.addf("$.status: Approved with nits requires zero P0/P1 findings")
		}
		if questionCount > 0 {
			v.addf("$.status: Approved with nits requires zero questions")
		}
	case StatusBlocked:
		if blockingCount == 0 {
			v.addf("$.status: Blocked requires at least one P0/P1 finding")
		}
	case StatusQuestion:
		if questionCount == 0 {
			v.addf("$.status: Question requires at least one question")
		}
	}
}

func checkFindings(raw any, v *violations) (total, blocking int) {
	if raw == nil {
		return 0, 0
	}
	items, ok := raw.([]any)
	if !ok {
		v.addf("$.findings: must be an array")
		return 0, 0
	}
	for i, item := range items {
		f, ok := item.(map[string]any)
		if !ok {
			v.addf("$.findings[%d]: must be an object", i)
			continue
		}
		total++
		if checkFinding(i, f, v) {
			blocking++
		}
	}
	return total, blocking
}

// checkFinding validates one finding object and reports whether it carries a
// blocking (P0/P1) priority.
func checkFinding(i int, f map[string]any, v *violations) bool {
	at := func(field string) string { return fmt.Sprintf("$.findings[%d].%s", i, field) }

	for _, key := range sortedKeys(f) {
		if !findingKeys[key] {
			v.addf("%s: unknown key", at(key))
		}
	}
	for _, key := range []string{"title", "body", "priority", "code_location"} {
		if _, ok := f[key]; !ok {
			v.addf("%s: required key missing", at(key))
		}
	}

	if raw, ok := f["title"]; ok {
		s, isStr := raw.(string)
		switch {
		case !isStr || strings.TrimSpace(s) == "":
			v.addf("%s: must be a non-empty string", at("title"))
		case len([]rune(s)) > 120:
			v.addf("%s: must be at most 120 characters", at("title"))
		}
	}
	if raw, ok := f["body"]; ok {
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			v.addf("%s: must be a non-empty string", at("body"))
		}
	}

	isBlocking := false
	if raw, ok := f["priority"]; ok {
		s, isStr := raw.(string)
		if !isStr || !ValidPriority(Priority(s)) {
			v.addf("%s: must be one of P0, P1, P2, P3", at("priority"))
		} else {
			isBlocking = Blocking(Priority(s))
		}
	}

	if raw, ok := f["code_location"]; ok {
		checkCodeLocation(at("code_location"), raw, v)
	}

	if raw, ok := f["sources"]; ok {
		items, isList := raw.([]any)
		if !isList {
			v.addf("%s: must be an array of strings", at("sources"))
		} else {
			for j, s := range items {
				if _, isStr := s.(string); !isStr {
					v.addf("%s[%d]: must be a string", at("sources"), j)
				}
			}
		}
	}

	return isBlocking
}

func checkCodeLocation(at string, raw any, v *violations) {
	loc, ok := raw.(map[string]any)
	if !ok {
		v.addf("%s: must be an object", at)
		return
	}

	pathRaw, hasPath := loc["repo_relative_path"]
	if !hasPath {
		v.addf("%s.repo_relative_path: required key missing", at)
	} else if p, isStr := pathRaw.(string); !isStr || p == "" {
		v.addf("%s.repo_relative_path: must be a non-empty string", at)
	} else if !repoRelative(p) {
		v.addf("%s.repo_relative_path: must be repo-relative (no leading / or .. segments)", at)
	}

	lrRaw, hasLR := loc["line_range"]
	if !hasLR {
		v.addf("%s.line_range: required key missing", at)
		return
	}
	lr, isObj := lrRaw.(map[string]any)
	if !isObj {
		v.addf("%s.line_range: must be an object", at)
		return
	}

	start, startOK := asInt(lr["start"])
	end, endOK := asInt(lr["end"])
	if !startOK || start < 1 {
		v.addf("%s.line_range.start: must be a positive integer", at)
	}
	if !endOK || end < 1 {
		v.addf("%s.line_range.end: must be a positive integer", at)
	}
	if startOK && endOK && start >= 1 && end >= 1 && end < start {
		v.addf("%s.line_range.end: must be >= start", at)
	}
}

func checkQuestions(raw any, v *violations) int {
	if raw == nil {
		return 0
	}
	items, ok := raw.([]any)
	if !ok {
		v.addf("$.questions: must be an array")
		return 0
	}
	for i, item := range items {
		if s, isStr := item.(string); !isStr || strings.TrimSpace(s) == "" {
			v.addf("$.questions[%d]: must be a non-empty string", i)
		}
	}
	return len(items)
}

// repoRelative rejects absolute paths and any path with a ".." segment.
func repoRelative(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return false
		}
	}
	return true
}

func asInt(raw any) (int, bool) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
