package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDir(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(base, DirName))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(base, DirName), s.Root())
}

func TestWriteJSON_AtomicAndRestricted(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	path := s.AspectResultPath("security")
	require.NoError(t, s.WriteJSON(path, map[string]int{"n": 1}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1, got["n"])

	// No temp droppings left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteWarnings_DropsBlankLines(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	require.NoError(t, err)

	require.NoError(t, s.WriteWarnings([]string{"one", "  ", "two"}))
	data, err := os.ReadFile(filepath.Join(s.Root(), "warnings.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestWriteRunMeta(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	meta, err := s.WriteRunMeta("scope-1")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.RunID)
	assert.Equal(t, "scope-1", meta.ScopeID)

	data, err := os.ReadFile(filepath.Join(s.Root(), "meta.json"))
	require.NoError(t, err)
	var got RunMeta
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, meta.RunID, got.RunID)
}

func TestClearAspectErrors(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteJSON(s.AspectErrorPath("security"), map[string]string{"kind": "blocked"}))
	_, err = s.WriteValidationError("security.schema.error.json", ValidationError{Kind: "schema_validation_failed"})
	require.NoError(t, err)

	s.ClearAspectErrors([]string{"security"})

	_, err = os.Stat(s.AspectErrorPath("security"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(s.Root(), "errors", "security.schema.error.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRel(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base)
	require.NoError(t, err)

	assert.Equal(t, DirName+"/aspects/index.json", s.Rel(s.IndexPath()))
}

func TestClearSummary(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteJSON(s.SummaryPath(), map[string]string{"status": "Approved"}))
	require.NoError(t, s.WriteText(s.SummaryMarkdownPath(), "# Review Summary"))

	s.ClearSummary()

	_, err = os.Stat(s.SummaryPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.SummaryMarkdownPath())
	assert.True(t, os.IsNotExist(err))

	// Clearing when nothing exists is a no-op.
	s.ClearSummary()
}
