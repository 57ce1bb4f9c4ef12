package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StableUnderIncidentalDifferences(t *testing.T) {
	base := finding("a.go", 3, 7, "a.go#L3", "b.go#L1-L2")
	base.Title = "Leaked file handle"
	base.Body = "The handle is never closed."

	reordered := base
	reordered.Sources = []string{"b.go#L1-L2", "a.go#L3"}

	spaced := base
	spaced.Title = "  Leaked   file\thandle "
	spaced.Body = "The  handle is\nnever closed."

	duplicated := base
	duplicated.Sources = []string{"a.go#L3", "a.go#L3", " b.go#L1-L2 "}

	want := Fingerprint(base)
	assert.True(t, strings.HasPrefix(want, "fctf1:"))
	assert.Equal(t, want, Fingerprint(reordered))
	assert.Equal(t, want, Fingerprint(spaced))
	assert.Equal(t, want, Fingerprint(duplicated))
}

func TestFingerprint_SensitiveToSemanticChanges(t *testing.T) {
	base := finding("a.go", 3, 7, "a.go#L3")
	base.Title = "Leaked file handle"
	base.Body = "The handle is never closed."
	want := Fingerprint(base)

	mutations := []func(f *Finding){
		func(f *Finding) { f.Title = "Leaked socket handle" },
		func(f *Finding) { f.Body = "Different body." },
		func(f *Finding) { f.Priority = PriorityP0 },
		func(f *Finding) { f.CodeLocation.RepoRelativePath = "b.go" },
		func(f *Finding) { f.CodeLocation.LineRange.Start = 4 },
		func(f *Finding) { f.CodeLocation.LineRange.End = 8 },
	}
	for i, mutate := range mutations {
		f := base
		mutate(&f)
		assert.NotEqual(t, want, Fingerprint(f), "mutation %d", i)
	}
}

func TestFingerprint_InvalidPriorityCanonicalizedToEmpty(t *testing.T) {
	a := finding("a.go", 1, 1, "a.go")
	a.Priority = "bogus"
	b := a
	b.Priority = "also-bogus"

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}
