package aspect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetlabs/facet/internal/errs"
)

func TestRunOne_WritesValidatedResult(t *testing.T) {
	store := newStore(t)
	runner := payloadRunner(nil, func(string) (json.RawMessage, error) {
		return approvedPayload(scopeID), nil
	})

	path, err := RunOne(context.Background(), store, runner, &Templates{}, RunRequest{
		Aspect:  "correctness",
		ScopeID: scopeID,
		Bundle:  "bundle",
	})
	require.NoError(t, err)
	assert.Equal(t, store.AspectResultPath("correctness"), path)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), scopeID)
}

func TestRunOne_RequiresScopeID(t *testing.T) {
	store := newStore(t)
	runner := payloadRunner(nil, func(string) (json.RawMessage, error) {
		return approvedPayload(scopeID), nil
	})

	_, err := RunOne(context.Background(), store, runner, &Templates{}, RunRequest{
		Aspect:  "correctness",
		ScopeID: "   ",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope_id is required")
}

func TestRunOne_ScopeIDMismatchFailsValidation(t *testing.T) {
	store := newStore(t)
	runner := payloadRunner(nil, func(string) (json.RawMessage, error) {
		return approvedPayload("local:other:scope"), nil
	})

	_, err := RunOne(context.Background(), store, runner, &Templates{}, RunRequest{
		Aspect:  "correctness",
		ScopeID: scopeID,
	})
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))
	assert.NoFileExists(t, store.AspectResultPath("correctness"))
}

func TestRunOne_SchemaErrorArtifact(t *testing.T) {
	store := newStore(t)
	runner := payloadRunner(nil, func(string) (json.RawMessage, error) {
		return json.RawMessage(`{"schema_version": 3, "scope_id": "` + scopeID + `", "status": "Approved", "findings": [], "questions": ["why?"], "overall_explanation": "x", "extra_key": true}`), nil
	})

	_, err := RunOne(context.Background(), store, runner, &Templates{}, RunRequest{
		Aspect:  "security",
		ScopeID: scopeID,
	})
	require.Error(t, err)
	assert.True(t, errs.IsExecFailure(err))

	errPath := filepath.Join(store.Root(), "errors", "security.schema.error.json")
	data, readErr := os.ReadFile(errPath)
	require.NoError(t, readErr)

	var ve struct {
		Kind    string         `json:"kind"`
		Errors  []string       `json:"errors"`
		Extra   map[string]any `json:"extra"`
		Target  string         `json:"target_path"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &ve))
	assert.Equal(t, "schema_validation_failed", ve.Kind)
	assert.NotEmpty(t, ve.Errors)
	assert.Equal(t, "security", ve.Extra["aspect"])
	assert.Equal(t, ".facet-review/aspects/security.json", ve.Target)
	assert.Contains(t, ve.Message, "validation failed")
}

func TestRunOne_RunnerErrorPropagates(t *testing.T) {
	store := newStore(t)
	runner := payloadRunner(nil, func(string) (json.RawMessage, error) {
		return nil, errs.Blocked("no capability")
	})

	_, err := RunOne(context.Background(), store, runner, &Templates{}, RunRequest{
		Aspect:  "testing",
		ScopeID: scopeID,
	})
	require.Error(t, err)
	assert.True(t, errs.IsBlocked(err))
}

func TestSplitViolations(t *testing.T) {
	got := splitViolations("review JSON validation failed: a is bad; b is worse (+2 more)")
	assert.Equal(t, []string{"a is bad", "b is worse (+2 more)"}, got)

	got = splitViolations("some unrelated failure")
	assert.Equal(t, []string{"some unrelated failure"}, got)
}
