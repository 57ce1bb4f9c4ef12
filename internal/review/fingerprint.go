package review

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// fingerprintPrefix versions the fingerprint format so a future canonical
// form cannot collide with stored identities.
const fingerprintPrefix = "fctf1:"

var spaceRE = regexp.MustCompile(`\s+`)

// canonicalFinding is the exact shape hashed by Fingerprint. Field names are
// part of the identity format and must not change.
type canonicalFinding struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority string   `json:"priority"`
	Path     string   `json:"path"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Sources  []string `json:"sources"`
}

// Fingerprint produces a stable, content-derived identity for a finding,
// used for de-duplication and cross-run comment reconciliation.
//
// Whitespace in title/body is collapsed, priority is upper-cased (and
// blanked if not P0..P3), and sources are trimmed, de-duplicated, and
// sorted, so incidental ordering and spacing differences fingerprint
// identically while any semantic change does not.
func Fingerprint(f Finding) string {
	sources := make([]string, 0, len(f.Sources))
	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		s = normText(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		sources = append(sources, s)
	}
	sort.Strings(sources)

	priority := strings.ToUpper(normText(string(f.Priority)))
	if !ValidPriority(Priority(priority)) {
		priority = ""
	}

	canonical := canonicalFinding{
		Title:    normText(f.Title),
		Body:     normText(f.Body),
		Priority: priority,
		Path:     normText(f.CodeLocation.RepoRelativePath),
		Start:    normNonNegative(f.CodeLocation.LineRange.Start),
		End:      normNonNegative(f.CodeLocation.LineRange.End),
		Sources:  sources,
	}

	payload, err := json.Marshal(canonical)
	if err != nil {
		// Cannot happen for this shape; keep the identity total anyway.
		payload = []byte(canonical.Title)
	}
	return fingerprintPrefix + fmt.Sprintf("%x", sha256.Sum256(payload))
}

func normText(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

func normNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
