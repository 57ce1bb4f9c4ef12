package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/facetlabs/facet/internal/review"
)

// MarkdownWriter renders the summary in its canonical markdown shape:
// P0/P1 findings listed flat, P2/P3 folded into a details block, questions
// last. The same text is persisted as review-summary.md and reused for the
// PR summary comment.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, summary *review.Summary) error {
	_, err := io.WriteString(w, FormatSummaryMarkdown(summary))
	return err
}

// FormatSummaryMarkdown renders the summary as a markdown document.
func FormatSummaryMarkdown(summary *review.Summary) string {
	status := string(summary.Status)
	if status == "" {
		status = "unknown"
	}

	var b strings.Builder
	b.WriteString("# Review Summary\n\n")
	fmt.Fprintf(&b, "- Status: %s\n\n", status)

	b.WriteString("## Findings\n")
	if len(summary.Findings) == 0 {
		b.WriteString("\n(no findings)\n")
	} else {
		var blocking, minor, other []review.Finding
		for _, f := range summary.Findings {
			switch {
			case review.Blocking(f.Priority):
				blocking = append(blocking, f)
			case f.Priority == review.PriorityP2 || f.Priority == review.PriorityP3:
				minor = append(minor, f)
			default:
				other = append(other, f)
			}
		}

		b.WriteString("\n")
		for _, f := range blocking {
			b.WriteString(findingHeading(f) + "\n")
		}

		if len(minor) > 0 {
			if len(blocking) > 0 {
				b.WriteString("\n")
			}
			b.WriteString("<details>\n<summary>P2/P3</summary>\n\n")
			for _, f := range minor {
				b.WriteString(findingHeading(f) + "\n")
			}
			b.WriteString("\n</details>\n")
		}

		for _, f := range other {
			b.WriteString(findingHeading(f) + "\n")
		}
	}

	b.WriteString("\n## Questions\n")
	if len(summary.Questions) == 0 {
		b.WriteString("\n(no questions)\n")
	} else {
		b.WriteString("\n")
		for _, q := range summary.Questions {
			if q != "" {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// findingHeading renders one finding bullet: "- [P1] title (path#L3-L9)".
func findingHeading(f review.Finding) string {
	var b strings.Builder
	b.WriteString("-")
	if f.Priority != "" {
		fmt.Fprintf(&b, " [%s]", f.Priority)
	}
	if f.Title != "" {
		b.WriteString(" " + f.Title)
	}
	loc := f.CodeLocation
	if loc.RepoRelativePath != "" && loc.LineRange.Start > 0 {
		fmt.Fprintf(&b, " (%s#L%d-L%d)", loc.RepoRelativePath, loc.LineRange.Start, loc.LineRange.End)
	}
	return strings.TrimRight(b.String(), " ")
}
