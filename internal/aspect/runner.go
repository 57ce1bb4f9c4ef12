package aspect

import (
	"context"
	"strings"
	"time"

	"github.com/facetlabs/facet/internal/artifacts"
	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/review"
	"github.com/facetlabs/facet/internal/viewpoint"
)

// RunRequest carries the inputs for a single aspect invocation.
type RunRequest struct {
	Aspect    string
	ScopeID   string
	Bundle    string
	Reference string
	Timeout   time.Duration
	Env       map[string]string
}

// RunOne renders the aspect's prompt, invokes the viewpoint runner once,
// validates the payload, and writes aspects/<name>.json. On a schema
// violation it leaves errors/<name>.schema.error.json for downstream gates
// and returns an execution failure.
func RunOne(ctx context.Context, store *artifacts.Store, runner viewpoint.Runner, tpl *Templates, req RunRequest) (string, error) {
	a, err := Normalize(req.Aspect)
	if err != nil {
		return "", err
	}
	scopeID := strings.TrimSpace(req.ScopeID)
	if scopeID == "" {
		return "", errs.ExecFailure("scope_id is required")
	}

	prompt, err := tpl.Render(a, scopeID, req.Bundle, req.Reference)
	if err != nil {
		return "", err
	}

	res, err := runner.Run(ctx, viewpoint.Request{
		Aspect:  a,
		Prompt:  prompt,
		Timeout: req.Timeout,
		Env:     req.Env,
	})
	if err != nil {
		return "", err
	}

	resultPath := store.AspectResultPath(a)
	if _, err := review.Validate(res.Payload, scopeID); err != nil {
		msg := err.Error()
		if _, werr := store.WriteValidationError(a+".schema.error.json", artifacts.ValidationError{
			Kind:       "schema_validation_failed",
			Message:    msg,
			TargetPath: store.Rel(resultPath),
			Errors:     splitViolations(msg),
			Extra:      map[string]any{"aspect": a, "scope_id": scopeID},
		}); werr != nil {
			return "", errs.ExecFailureWrap(werr, "writing schema error artifact for %s", a)
		}
		return "", err
	}

	if err := store.WriteJSON(resultPath, res.Payload); err != nil {
		return "", errs.ExecFailureWrap(err, "writing aspect result for %s", a)
	}
	return resultPath, nil
}

// splitViolations unpacks the per-violation list from a validation error
// message so the artifact keeps them machine-readable.
func splitViolations(msg string) []string {
	const prefix = "review JSON validation failed: "
	rest, ok := strings.CutPrefix(msg, prefix)
	if !ok {
		return []string{msg}
	}
	var out []string
	for _, part := range strings.Split(rest, "; ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{msg}
	}
	return out
}
