package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/facetlabs/facet/internal/review"
)

// TextWriter outputs a human-readable console report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, summary *review.Summary) error {
	ew := &errWriter{w: w}

	ew.printf("Review Summary — %s\n", summary.ScopeID)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Status: %s\n", summary.Status)

	if len(summary.AspectStatuses) > 0 {
		aspects := make([]string, 0, len(summary.AspectStatuses))
		for a := range summary.AspectStatuses {
			aspects = append(aspects, a)
		}
		sort.Strings(aspects)
		ew.println("\nAspects:")
		for _, a := range aspects {
			ew.printf("  %-14s %s\n", a, summary.AspectStatuses[a])
		}
	}

	ew.printf("\nFindings: %d\n", len(summary.Findings))
	for _, f := range summary.Findings {
		loc := f.CodeLocation
		ew.printf("\n  %s %s  %s:%d-%d\n",
			priorityTag(f), f.Title, loc.RepoRelativePath, loc.LineRange.Start, loc.LineRange.End)
		for _, line := range wrapText(f.Body, 70) {
			ew.printf("    %s\n", line)
		}
	}

	if len(summary.Questions) > 0 {
		ew.println("\nQuestions:")
		for _, q := range summary.Questions {
			ew.printf("  - %s\n", q)
		}
	}

	if summary.OverallExplanation != "" {
		ew.printf("\n%s\n", strings.Repeat("─", 60))
		for _, line := range wrapText(summary.OverallExplanation, 76) {
			ew.printf("%s\n", line)
		}
	}

	return ew.err
}

// priorityTag renders a finding's priority with its post-policy provenance:
// a downgraded finding shows where it came from.
func priorityTag(f review.Finding) string {
	tag := "[" + string(f.Priority) + "]"
	if f.OriginalPriority != "" && f.OriginalPriority != f.Priority {
		tag = fmt.Sprintf("[%s<-%s]", f.Priority, f.OriginalPriority)
	}
	if f.Verified != nil && !*f.Verified {
		tag += " (unverified)"
	}
	return tag
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
