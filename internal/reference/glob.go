package reference

import (
	"path"
	"sort"
	"strings"
)

// NormalizePath normalizes a repo-relative path: backslashes become
// slashes, leading "./" and "/" are stripped, repeated slashes collapse.
// Paths containing dot segments are rejected (returns "") so an allowlist
// can never be escaped with "..".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")

	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}
		if s == "." || s == ".." {
			return ""
		}
		segs = append(segs, s)
	}
	return strings.Join(segs, "/")
}

// FilterPaths returns the sorted, unique paths matching any pattern.
func FilterPaths(paths, patterns []string) []string {
	var pats []string
	for _, raw := range patterns {
		if p := NormalizePath(raw); p != "" {
			pats = append(pats, p)
		}
	}
	if len(pats) == 0 {
		return nil
	}

	matched := make(map[string]bool)
	for _, raw := range paths {
		p := NormalizePath(raw)
		if p == "" || matched[p] {
			continue
		}
		for _, pat := range pats {
			if MatchGlob(p, pat) {
				matched[p] = true
				break
			}
		}
	}

	out := make([]string, 0, len(matched))
	for p := range matched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MatchGlob matches a repo-relative path against a glob pattern.
// `*` and `?` never cross a directory boundary; a `**` segment matches
// zero or more whole segments.
func MatchGlob(p, pattern string) bool {
	pat := NormalizePath(pattern)
	if pat == "" {
		return false
	}
	return matchSegments(splitSegments(NormalizePath(p)), splitSegments(pat))
}

func splitSegments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pathSegs, patSegs []string) bool {
	if len(patSegs) == 0 {
		return len(pathSegs) == 0
	}
	if patSegs[0] == "**" {
		if matchSegments(pathSegs, patSegs[1:]) {
			return true
		}
		return len(pathSegs) > 0 && matchSegments(pathSegs[1:], patSegs)
	}
	if len(pathSegs) == 0 {
		return false
	}
	if ok, err := path.Match(patSegs[0], pathSegs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pathSegs[1:], patSegs[1:])
}
