// Package output renders a merged review summary for display or
// machine consumption.
//
// Four formats are supported:
//   - markdown — the canonical report shape, also used for PR comments (default)
//   - text     — human-readable terminal output
//   - json     — the summary document as indented JSON
//   - sarif    — SARIF v2.1.0 for upload to GitHub code scanning and other CI tools
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*review.Summary]. [WriteSummary]
// handles destination selection (file path or stdout).
package output
