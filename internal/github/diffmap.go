package github

import (
	"strconv"
	"strings"

	"github.com/facetlabs/facet/internal/diffparse"
)

// PositionMap maps repo-relative path -> right-side (new) line number ->
// diff position, the 1-based offset within the file's patch that the review
// comment API anchors to.
type PositionMap map[string]map[int]int

// BuildPositionMap walks a unified diff and records, per file, the diff
// position of every right-side line. Positions count every patch line after
// the file header, including hunk headers after the first.
func BuildPositionMap(patch string) PositionMap {
	out := PositionMap{}

	var (
		curPath    string
		curMap     map[int]int
		curNewLine int
		inHunk     bool
		pos        int
	)

	flush := func() {
		if curPath != "" && len(curMap) > 0 {
			out[curPath] = curMap
		}
		curPath = ""
		curMap = nil
		inHunk = false
		pos = 0
	}

	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			if _, bPath, ok := diffparse.HeaderPaths(line); ok && bPath != "" {
				curPath = bPath
				curMap = map[int]int{}
			}
			continue
		}
		if curPath == "" {
			continue
		}

		if !inHunk && strings.HasPrefix(line, "+++ ") {
			if plus := diffparse.PathToken(line[4:]); strings.HasPrefix(plus, "b/") {
				curPath = plus[2:]
			}
			continue
		}

		if strings.HasPrefix(line, "@@ ") {
			// Hunk headers after the first count as positions.
			if inHunk {
				pos++
			}
			start, ok := newStart(line)
			if !ok {
				inHunk = false
				continue
			}
			curNewLine = start
			inHunk = true
			continue
		}

		if !inHunk || line == "" {
			continue
		}

		if line[0] == '\\' {
			pos++
			continue
		}

		switch line[0] {
		case ' ', '+':
			pos++
			curMap[curNewLine] = pos
			curNewLine++
		case '-':
			pos++
		}
	}

	flush()
	return out
}

// Resolve returns the diff position for a right-side line, or 0 when the
// line is not present in the patch.
func (m PositionMap) Resolve(path string, line int) int {
	byPath, ok := m[path]
	if !ok {
		return 0
	}
	return byPath[line]
}

// newStart pulls the new-side start line out of a `@@ -a,b +c,d @@` header.
func newStart(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || !strings.HasPrefix(fields[2], "+") {
		return 0, false
	}
	numPart := strings.TrimPrefix(fields[2], "+")
	if i := strings.IndexByte(numPart, ','); i >= 0 {
		numPart = numPart[:i]
	}
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, false
	}
	return n, true
}
