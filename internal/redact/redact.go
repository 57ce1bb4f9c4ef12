package redact

import "regexp"

const placeholder = "<REDACTED>"

// rewrites pair a detection pattern with its replacement. Patterns that
// capture a key name keep it so redacted output stays diagnosable.
var rewrites = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	// Authorization header style tokens.
	{regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._\-]+`), "Bearer " + placeholder},
	// SCREAMING_SNAKE env assignments ending in _TOKEN / _KEY / _SECRET,
	// both KEY=VALUE and KEY: VALUE forms.
	{regexp.MustCompile(`(?m)\b([A-Z0-9_]{2,64}_(?:TOKEN|KEY|SECRET))\b\s*[:=]\s*\S+`), "$1=" + placeholder},
	// Explicit lowercase assignments.
	{regexp.MustCompile(`(?im)\b(api[_-]?key|token|secret)\b\s*[:=]\s*\S+`), "$1=" + placeholder},
	// Provider-recognizable token shapes, regardless of surrounding context.
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`), placeholder},
	{regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`), placeholder},
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), placeholder},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), placeholder},
	// JWTs (three dot-separated base64url segments).
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), placeholder},
	// Private key blocks.
	{regexp.MustCompile(`-----BEGIN\s+[A-Z ]*PRIVATE KEY-----`), placeholder},
}

// Secrets replaces token-like material in text with <REDACTED>. It is
// heuristic by nature and tuned to the things that show up in subprocess
// transcripts: auth headers, env assignments, and well-known token shapes.
func Secrets(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, rw := range rewrites {
		out = rw.pattern.ReplaceAllString(out, rw.repl)
	}
	return out
}
