package reference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMarkdown_RendersSortedBlocks(t *testing.T) {
	text, warnings := BuildMarkdown(map[string]string{
		"docs/decisions.md": "decided\n",
		"README.md":         "hello\nworld\n",
	}, DefaultMaxLines)

	require.Empty(t, warnings)
	assert.Equal(t, "# SoT Bundle\n"+
		"\n# SRC: README.md\nL1: hello\nL2: world\n"+
		"\n# SRC: docs/decisions.md\nL1: decided\n", text)
}

func TestBuildMarkdown_EmptyContentsHeaderOnly(t *testing.T) {
	text, warnings := BuildMarkdown(nil, DefaultMaxLines)

	assert.Empty(t, warnings)
	assert.Equal(t, "# SoT Bundle\n", text)
}

func TestBuildMarkdown_EmptyBodyGetsOneLine(t *testing.T) {
	text, _ := BuildMarkdown(map[string]string{"AGENTS.md": ""}, DefaultMaxLines)

	assert.Contains(t, text, "# SRC: AGENTS.md\nL1: \n")
}

func TestBuildMarkdown_NormalizesCRLF(t *testing.T) {
	text, _ := BuildMarkdown(map[string]string{"a.md": "one\r\ntwo\rthree\n"}, DefaultMaxLines)

	assert.Contains(t, text, "L1: one\nL2: two\nL3: three\n")
}

func TestBuildMarkdown_TruncatesAtLineCap(t *testing.T) {
	body := strings.Repeat("x\n", 20)
	text, warnings := BuildMarkdown(map[string]string{"README.md": body}, 5)

	require.Len(t, warnings, 1)
	// Header + blank + SRC header + 20 body lines.
	assert.Equal(t, "sot_truncated total_lines=23 limit_lines=5", warnings[0])
	assert.Equal(t, 5, strings.Count(text, "\n"))
	assert.True(t, strings.HasSuffix(text, "\n"))
}

func TestCollect_AllowlistAndCaps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "prd", "v1"), 0o755))
	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), []byte(content), 0o644))
	}
	write("README.md", "readme\n")
	write("docs/prd/v1/auth.md", "prd\n")
	write("docs/notes.txt", "not markdown\n")
	write("main.go", "package main\n")
	write("CHANGELOG.md", strings.Repeat("a", 200))         // over the test cap
	write("AGENTS.md", string([]byte{0xff, 0xfe, 0x00, 1})) // not UTF-8

	c := &Collector{Root: dir, MaxBytes: 100}
	contents, warnings := c.Collect(DefaultAllowlist())

	assert.Equal(t, map[string]string{
		"README.md":           "readme\n",
		"docs/prd/v1/auth.md": "prd\n",
	}, contents)
	require.Len(t, warnings, 2)
	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, "kind=size_limit_exceeded path=CHANGELOG.md size_bytes=200 limit_bytes=100")
	assert.Contains(t, joined, "kind=decode_error path=AGENTS.md")
}

func TestCollect_SkipsArtifactAndGitDirs(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{".git", ".facet-review"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, sub, "README.md"), []byte("hidden\n"), 0o644))
	}

	c := &Collector{Root: dir}
	contents, warnings := c.Collect(DefaultAllowlist())

	assert.Empty(t, contents)
	assert.Empty(t, warnings)
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"docs/prd/auth.md", "docs/prd/**/*.md", true},
		{"docs/prd/v2/deep/auth.md", "docs/prd/**/*.md", true},
		{"docs/prd/auth.txt", "docs/prd/**/*.md", false},
		{"README.md", "README.md", true},
		{"sub/README.md", "README.md", false},
		{"a/b/c", "a/*/c", true},
		{"a/b/x/c", "a/*/c", false},
		{"anything", "**", true},
		{"a/b", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchGlob(tt.path, tt.pattern),
			"path=%s pattern=%s", tt.path, tt.pattern)
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "a/b.md", NormalizePath("./a//b.md"))
	assert.Equal(t, "a/b.md", NormalizePath("/a/b.md"))
	assert.Equal(t, "a/b.md", NormalizePath(`a\b.md`))
	assert.Equal(t, "", NormalizePath("a/../b.md"))
	assert.Equal(t, "", NormalizePath("  "))
}
