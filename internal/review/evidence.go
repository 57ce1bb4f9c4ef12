package review

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/facetlabs/facet/internal/bundle"
)

// Reason codes explaining why a finding's cited evidence failed to check
// out. Empty string means verified.
const (
	ReasonMissingSources   = "missing_sources"
	ReasonInvalidSources   = "invalid_sources"
	ReasonUnresolvedSource = "unresolved_source"
	ReasonPathMismatch     = "path_mismatch"
	ReasonLineUnverifiable = "line_unverifiable"
	ReasonLineMismatch     = "line_mismatch"
)

var sourceRefRE = regexp.MustCompile(`^([^#]+?)(?:#L(\d+)(?:-L(\d+))?)?$`)

// sourceRef is one parsed "path[#Lstart[-Lend]]" reference. start/end are 0
// when the reference names a whole file.
type sourceRef struct {
	path       string
	start, end int
}

// parseSourceRef parses a source reference string. It returns ok=false for
// empty strings, empty paths, and malformed or inverted line spans.
func parseSourceRef(s string) (sourceRef, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sourceRef{}, false
	}
	m := sourceRefRE.FindStringSubmatch(s)
	if m == nil {
		return sourceRef{}, false
	}
	path := strings.TrimSpace(m[1])
	if path == "" {
		return sourceRef{}, false
	}
	if m[2] == "" {
		return sourceRef{path: path}, true
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return sourceRef{}, false
	}
	end := start
	if m[3] != "" {
		end, err = strconv.Atoi(m[3])
		if err != nil {
			return sourceRef{}, false
		}
	}
	if start < 1 || end < start {
		return sourceRef{}, false
	}
	return sourceRef{path: path, start: start, end: end}, true
}

// VerifyFinding checks a finding's cited sources against the bundle index.
//
// A finding verifies as soon as any one source resolves to the finding's own
// path and names (or intersects) a line the bundle actually contains. When a
// source carries its own span, the finding's range is narrowed to the
// intersection; an empty intersection skips that source rather than counting
// as a match.
func VerifyFinding(f Finding, idx bundle.Index) (bool, string) {
	if len(f.Sources) == 0 {
		return false, ReasonMissingSources
	}

	var refs []sourceRef
	for _, s := range f.Sources {
		if ref, ok := parseSourceRef(s); ok {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return false, ReasonInvalidSources
	}

	path := f.CodeLocation.RepoRelativePath
	start := f.CodeLocation.LineRange.Start
	end := f.CodeLocation.LineRange.End
	if path == "" || start < 1 || end < start {
		return false, ReasonLineMismatch
	}

	resolvedAny := false
	matchedPath := false

	for _, ref := range refs {
		lines, indexed := idx[ref.path]
		if !indexed {
			continue
		}
		resolvedAny = true
		if ref.path != path {
			continue
		}
		matchedPath = true

		if len(lines) == 0 {
			return false, ReasonLineUnverifiable
		}

		effStart, effEnd := start, end
		if ref.start != 0 {
			effStart = max(effStart, ref.start)
			effEnd = min(effEnd, ref.end)
			if effEnd < effStart {
				continue
			}
		}

		for n := range lines {
			if n >= effStart && n <= effEnd {
				return true, ""
			}
		}
	}

	switch {
	case !resolvedAny:
		return false, ReasonUnresolvedSource
	case !matchedPath:
		return false, ReasonPathMismatch
	default:
		return false, ReasonLineMismatch
	}
}
