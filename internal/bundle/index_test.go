package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex_PrefixedLines(t *testing.T) {
	idx := ParseIndex("# SRC: a.go\nL3: x := 1\nL4: y := 2\n# SRC: b.go\nL10: z\n")

	require.Contains(t, idx, "a.go")
	require.Contains(t, idx, "b.go")
	assert.True(t, idx["a.go"][3])
	assert.True(t, idx["a.go"][4])
	assert.False(t, idx["a.go"][5])
	assert.True(t, idx["b.go"][10])
}

func TestParseIndex_SequentialFallback(t *testing.T) {
	idx := ParseIndex("# SRC: raw.txt\nfirst line\nsecond line\n")

	require.Contains(t, idx, "raw.txt")
	assert.True(t, idx["raw.txt"][1])
	assert.True(t, idx["raw.txt"][2])
}

func TestParseIndex_HeaderOnlyBlockHasNoLines(t *testing.T) {
	idx := ParseIndex("# SRC: empty.go\n")

	require.Contains(t, idx, "empty.go")
	assert.Empty(t, idx["empty.go"])
}

func TestParseIndex_IgnoresContentBeforeFirstHeader(t *testing.T) {
	idx := ParseIndex("stray text\nL5: orphan\n# SRC: a.go\nL1: ok\n")

	assert.Len(t, idx, 1)
	assert.True(t, idx["a.go"][1])
}

func TestParseIndex_SoTMarkerResetsCurrentBlock(t *testing.T) {
	idx := ParseIndex("# SRC: a.go\nL1: ok\n# SoT Bundle\nL2: outside\n")

	assert.False(t, idx["a.go"][2])
}

func TestParseIndex_RejectsNonPositiveLineNumbers(t *testing.T) {
	idx := ParseIndex("# SRC: a.go\nL0: bad\nL7: good\n")

	assert.False(t, idx["a.go"][0])
	assert.True(t, idx["a.go"][7])
}
