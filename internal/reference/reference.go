// Package reference collects source-of-truth project docs (PRDs, ADRs,
// READMEs) from the working tree and renders them as a line-addressable
// markdown bundle so aspect reviews can cite documented intent, not just
// the diff.
package reference

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/facetlabs/facet/internal/bundle"
)

const (
	// DefaultMaxBytes is the per-file size cap for collected docs.
	DefaultMaxBytes = 100 * 1024
	// DefaultMaxLines caps the rendered bundle; the diff bundle gets the
	// remaining line budget.
	DefaultMaxLines = 250
)

// Header opens the rendered bundle and separates it from the diff blocks
// that precede it in the combined context bundle.
const Header = "# SoT Bundle"

// DefaultAllowlist returns the built-in repo-relative glob allowlist.
// It is intentionally small: project docs and agent governance files.
func DefaultAllowlist() []string {
	return []string{
		"docs/prd/**/*.md",
		"docs/epics/**/*.md",
		"docs/decisions.md",
		"docs/glossary.md",
		"README.md",
		"CHANGELOG.md",
		"AGENTS.md",
		".agent/commands/**/*.md",
		".agent/rules/**/*.md",
	}
}

// Collector reads allowlisted docs from a working tree root.
type Collector struct {
	Root     string
	MaxBytes int
}

// Collect walks the tree, matches regular files against the allowlist
// patterns, and returns their contents keyed by repo-relative slash path.
// Oversized, unreadable, and non-UTF-8 files are skipped with a warning;
// collection failures never fail the run.
func (c *Collector) Collect(patterns []string) (map[string]string, []string) {
	root := c.Root
	if root == "" {
		root = "."
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var paths []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && (d.Name() == ".git" || d.Name() == ".facet-review") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})

	contents := make(map[string]string)
	var warnings []string
	for _, p := range FilterPaths(paths, patterns) {
		full := filepath.Join(root, filepath.FromSlash(p))
		info, err := os.Stat(full)
		if err != nil {
			warnings = append(warnings, contentWarning("read_failed", p, err.Error()))
			continue
		}
		if info.Size() > int64(maxBytes) {
			warnings = append(warnings, fmt.Sprintf(
				"content_warning kind=size_limit_exceeded path=%s size_bytes=%d limit_bytes=%d",
				bundle.Sanitize(p), info.Size(), maxBytes))
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			warnings = append(warnings, contentWarning("read_failed", p, err.Error()))
			continue
		}
		if !utf8.Valid(data) {
			warnings = append(warnings, contentWarning("decode_error", p, "not valid UTF-8"))
			continue
		}
		contents[p] = string(data)
	}
	return contents, warnings
}

func contentWarning(kind, path, message string) string {
	return fmt.Sprintf("content_warning kind=%s path=%s message=%s",
		kind, bundle.Sanitize(path), bundle.Sanitize(message))
}

// BuildMarkdown renders collected docs as a line-addressable bundle under
// a total line cap. Every rendered line counts against the cap, headers
// included. Paths are emitted in sorted order so the output is
// deterministic; each body line carries an `L<n>:` prefix so it can never
// forge a `# SRC:` header and so evidence citations get a stable per-file
// line index.
func BuildMarkdown(contents map[string]string, maxLines int) (string, []string) {
	if maxLines < 1 {
		maxLines = 1
	}

	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString(Header + "\n")
	for _, p := range paths {
		b.WriteString("\n")
		b.WriteString("# SRC: " + bundle.Sanitize(p) + "\n")

		body := strings.ReplaceAll(contents[p], "\r\n", "\n")
		body = strings.ReplaceAll(body, "\r", "\n")
		bodyLines := []string{""}
		if body != "" {
			bodyLines = strings.Split(strings.TrimRight(body, "\n"), "\n")
		}
		for i, line := range bodyLines {
			fmt.Fprintf(&b, "L%d: %s\n", i+1, bundle.Sanitize(line))
		}
	}

	text := b.String()
	var warnings []string
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > maxLines {
		warnings = append(warnings, fmt.Sprintf(
			"sot_truncated total_lines=%d limit_lines=%d", len(lines), maxLines))
		text = strings.Join(lines[:maxLines], "")
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
	}
	return text, warnings
}
