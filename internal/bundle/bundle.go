package bundle

import (
	"fmt"
	"strings"

	"github.com/facetlabs/facet/internal/diffparse"
)

// Default line budgets for bundle construction.
const (
	DefaultMaxTotalLines = 1500
	DefaultMaxFileLines  = 400
)

// minBlockLines is the smallest possible SRC block: header + one content line.
const minBlockLines = 2

// Build renders source blocks into the line-addressable bundle text.
//
// Both budgets count the `# SRC:` header line. A block that would exceed
// either budget is dropped whole with a warning; a total-budget overflow
// keeps scanning later blocks that may still fit, and only stops once the
// remaining budget cannot hold even the smallest block.
func Build(blocks []diffparse.SourceBlock, maxTotalLines, maxFileLines int) (string, []string) {
	var warnings []string
	var out []string

	totalUsed := 0
	fileUsed := make(map[string]int)

	for _, block := range blocks {
		safePath := Sanitize(block.Path)
		if safePath == "" {
			warnings = append(warnings, "context_bundle_block_skipped kind=empty_path")
			continue
		}
		if len(block.Lines) == 0 {
			warnings = append(warnings, "context_bundle_block_skipped kind=empty path="+safePath)
			continue
		}

		required := 1 + len(block.Lines)

		if fileUsed[block.Path]+required > maxFileLines {
			warnings = append(warnings, fmt.Sprintf(
				"context_bundle_file_truncated path=%s limit_lines=%d dropped_block_lines=%d",
				safePath, maxFileLines, required))
			continue
		}

		if totalUsed+required > maxTotalLines {
			warnings = append(warnings, fmt.Sprintf(
				"context_bundle_total_truncated limit_lines=%d path=%s dropped_block_lines=%d",
				maxTotalLines, safePath, required))
			if maxTotalLines-totalUsed < minBlockLines {
				break
			}
			continue
		}

		out = append(out, "# SRC: "+safePath)
		for _, l := range block.Lines {
			out = append(out, fmt.Sprintf("L%d: %s", l.NewLine, Sanitize(l.Text)))
		}
		totalUsed += required
		fileUsed[block.Path] += required
	}

	if len(out) == 0 {
		return "", warnings
	}
	return strings.Join(out, "\n") + "\n", warnings
}

// Sanitize returns a single-line, log-safe rendering of s. Backslash, CR,
// LF, TAB, and remaining control bytes are escaped so diff content can never
// forge a `# SRC:` header or inject unbounded output into the bundle.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 32 || r == 127:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
