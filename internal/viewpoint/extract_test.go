package viewpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetlabs/facet/internal/errs"
)

func TestExtractPayload_LastTextWins(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"step_start"}`,
		`{"type":"text","part":{"text":"{\"draft\":1}"}}`,
		`{"type":"tool_use","part":{"name":"grep"}}`,
		`{"type":"text","part":{"text":"{\"final\":true}"}}`,
		`{"type":"step_finish"}`,
	}, "\n")

	payload, err := ExtractPayload(strings.NewReader(stream))
	require.NoError(t, err)
	assert.JSONEq(t, `{"final":true}`, string(payload))
}

func TestExtractPayload_SkipsLogNoise(t *testing.T) {
	stream := strings.Join([]string{
		"INFO starting session",
		"",
		`{"type":"text","part":{"text":"{\"ok\":1}"}}`,
		"WARN something unrelated",
	}, "\n")

	payload, err := ExtractPayload(strings.NewReader(stream))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":1}`, string(payload))
}

func TestExtractPayload_ToleratesUnknownEventShapes(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":42}`,
		`{"type":"text","part":"not an object"}`,
		`{"type":"text","part":{"text":"{\"ok\":2}"}}`,
	}, "\n")

	payload, err := ExtractPayload(strings.NewReader(stream))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":2}`, string(payload))
}

func TestExtractPayload_NoEvents(t *testing.T) {
	_, err := ExtractPayload(strings.NewReader("just logs\nmore logs\n"))
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))
	assert.Contains(t, err.Error(), "no JSON events")
}

func TestExtractPayload_NoTextEvent(t *testing.T) {
	_, err := ExtractPayload(strings.NewReader(`{"type":"step_start"}` + "\n"))
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))
	assert.Contains(t, err.Error(), "no final text output")
}

func TestExtractPayload_MalformedEventLine(t *testing.T) {
	_, err := ExtractPayload(strings.NewReader("{not json\n"))
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))
	assert.Contains(t, err.Error(), "invalid JSONL event")
}

func TestExtractPayload_FinalTextNotJSON(t *testing.T) {
	stream := `{"type":"text","part":{"text":"sorry, I cannot do that"}}`
	_, err := ExtractPayload(strings.NewReader(stream))
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))
	assert.Contains(t, err.Error(), "invalid JSON")
}
