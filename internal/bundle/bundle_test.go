package bundle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetlabs/facet/internal/diffparse"
)

func block(path string, start, count int) diffparse.SourceBlock {
	b := diffparse.SourceBlock{Path: path}
	for i := 0; i < count; i++ {
		b.Lines = append(b.Lines, diffparse.SourceLine{NewLine: start + i, Text: "line"})
	}
	return b
}

func TestBuild_RendersHeadersAndLines(t *testing.T) {
	text, warnings := Build([]diffparse.SourceBlock{
		{Path: "a.go", Lines: []diffparse.SourceLine{
			{NewLine: 3, Text: "x := 1"},
			{NewLine: 4, Text: "y := 2"},
		}},
	}, DefaultMaxTotalLines, DefaultMaxFileLines)

	require.Empty(t, warnings)
	assert.Equal(t, "# SRC: a.go\nL3: x := 1\nL4: y := 2\n", text)
}

func TestBuild_BothBlocksDroppedWhenNeitherFits(t *testing.T) {
	// Two blocks each requiring 5 lines against a total budget of 4.
	text, warnings := Build([]diffparse.SourceBlock{
		block("a.go", 1, 4),
		block("b.go", 1, 4),
	}, 4, 400)

	assert.Empty(t, text)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Contains(t, w, "context_bundle_total_truncated")
	}
}

func TestBuild_LaterSmallerBlockStillFits(t *testing.T) {
	// First block requires 5 lines, second requires 3; budget 4 admits only
	// the second. Order-dependent admission, not all-or-nothing rejection.
	text, warnings := Build([]diffparse.SourceBlock{
		block("a.go", 1, 4),
		block("b.go", 1, 2),
	}, 4, 400)

	assert.NotContains(t, text, "# SRC: a.go")
	assert.Contains(t, text, "# SRC: b.go")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "path=a.go")
}

func TestBuild_NeverEmitsPartialBlock(t *testing.T) {
	text, _ := Build([]diffparse.SourceBlock{
		block("a.go", 1, 3),
		block("b.go", 1, 10),
	}, 6, 400)

	assert.Contains(t, text, "# SRC: a.go")
	assert.NotContains(t, text, "b.go")
	// All of a.go's lines present.
	assert.Equal(t, 4, len(strings.Split(strings.TrimRight(text, "\n"), "\n")))
}

func TestBuild_PerFileBudget(t *testing.T) {
	text, warnings := Build([]diffparse.SourceBlock{
		block("a.go", 1, 3),
		block("a.go", 50, 3),
	}, 100, 5)

	assert.Contains(t, text, "L1: ")
	assert.NotContains(t, text, "L50: ")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "context_bundle_file_truncated")
	assert.Contains(t, warnings[0], "limit_lines=5")
}

func TestBuild_StopsWhenBudgetBelowMinimumBlock(t *testing.T) {
	_, warnings := Build([]diffparse.SourceBlock{
		block("a.go", 1, 3),
		block("b.go", 1, 5),
		block("c.go", 1, 1),
	}, 5, 400)

	// a.go uses 4 of 5; remaining budget 1 < header+line, so scanning halts
	// after warning about b.go and never considers c.go.
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "path=b.go")
}

func TestSanitize_EscapesControlBytes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\\b", `a\\b`},
		{"a\nb", `a\nb`},
		{"a\r\tb", `a\r\tb`},
		{"a\x00b", `a\x00b`},
		{"a\x7fb", `a\x7fb`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in))
	}
}

func TestBuild_ForgedHeaderInContentIsNeutralized(t *testing.T) {
	text, _ := Build([]diffparse.SourceBlock{
		{Path: "evil\n# SRC: fake.go", Lines: []diffparse.SourceLine{
			{NewLine: 1, Text: "# SRC: injected.go\nL99: bogus"},
		}},
	}, 100, 100)

	idx := ParseIndex(text)
	_, fake := idx["fake.go"]
	_, injected := idx["injected.go"]
	assert.False(t, fake)
	assert.False(t, injected)
}
