package aspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/facetlabs/facet/internal/artifacts"
	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/viewpoint"
)

// Outcome records how one requested aspect ended. ResultPath points at the
// result document on success and the error document on failure.
type Outcome struct {
	Aspect       string `json:"aspect"`
	Ok           bool   `json:"ok"`
	ResultPath   string `json:"result_path"`
	ErrorKind    string `json:"error_kind"`
	ErrorMessage string `json:"error_message"`
}

// Index is the per-run outcome index persisted as aspects/index.json.
// Result paths are artifact-root relative for machine consumption.
type Index struct {
	SchemaVersion int       `json:"schema_version"`
	ScopeID       string    `json:"scope_id"`
	MaxLLMCalls   int       `json:"max_llm_calls"`
	Aspects       []Outcome `json:"aspects"`
}

// aspectError is the per-aspect error artifact aspects/<name>.error.json.
type aspectError struct {
	SchemaVersion int    `json:"schema_version"`
	Aspect        string `json:"aspect"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

// Orchestrator fans requested aspects out over a bounded worker pool, one
// viewpoint invocation per aspect, and aggregates outcomes into a
// deterministic index. Workers share nothing mutable beyond write-once
// outcome slots; a failing aspect never cancels its siblings.
type Orchestrator struct {
	Store     *artifacts.Store
	Runner    viewpoint.Runner
	Templates *Templates

	// Allowed is the known-aspect universe; nil means Known.
	Allowed     []string
	MaxLLMCalls int
	MaxWorkers  int
	Timeout     time.Duration
	Logger      *zap.Logger

	// Per-aspect override hooks. A nil hook (or a nil map from EnvFor)
	// falls back to the shared input.
	BundleFor    func(aspect string) string
	ReferenceFor func(aspect string) string
	EnvFor       func(aspect string) map[string]string
}

// Run validates the requested aspect names, dispatches each one once, and
// returns outcomes sorted by aspect name.
//
// Input validation failures abort before any invocation, leaving a single
// input-error artifact. After a full run, a blocked aspect raises a blocked
// error; otherwise any failed aspect raises an execution failure. The index
// always covers every requested aspect.
func (o *Orchestrator) Run(ctx context.Context, scopeID, bundle, reference string, requested []string) ([]Outcome, error) {
	if o.MaxLLMCalls < 1 {
		return nil, errs.ExecFailure("invalid max_llm_calls: %d (must be >= 1)", o.MaxLLMCalls)
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	normalized, err := o.validateAspects(requested)
	if err != nil {
		return nil, err
	}

	o.Store.ClearAspectErrors(normalized)

	workers := len(normalized)
	if o.MaxWorkers < workers {
		workers = o.MaxWorkers
	}
	if o.MaxLLMCalls < workers {
		workers = o.MaxLLMCalls
	}
	if workers < 1 {
		workers = 1
	}
	logger.Debug("dispatching aspects",
		zap.Strings("aspects", normalized),
		zap.Int("workers", workers),
		zap.String("scope_id", scopeID))

	outcomes := make([]Outcome, len(normalized))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range normalized {
		i, a := i, a
		g.Go(func() error {
			outcomes[i] = o.runAspect(ctx, logger, a, scopeID, bundle, reference)
			return nil
		})
	}
	_ = g.Wait() // workers record failures in their outcome slot

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Aspect < outcomes[j].Aspect })

	indexPath, err := o.writeIndex(scopeID, outcomes)
	if err != nil {
		return nil, err
	}

	anyBlocked, anyFailed := false, false
	for _, oc := range outcomes {
		switch oc.ErrorKind {
		case "blocked":
			anyBlocked = true
		case "exec_failure", "unexpected":
			anyFailed = true
		}
	}
	// Outcomes are returned alongside the aggregate error so callers can
	// still merge the aspects that did succeed.
	if anyBlocked {
		return outcomes, errs.Blocked("one or more aspects are blocked. See: %s", o.Store.Rel(indexPath))
	}
	if anyFailed {
		return outcomes, errs.ExecFailure("one or more aspects failed. See: %s", o.Store.Rel(indexPath))
	}
	return outcomes, nil
}

// validateAspects applies the input checks in order, each failure leaving a
// machine-readable input-error artifact.
func (o *Orchestrator) validateAspects(requested []string) ([]string, error) {
	failInput := func(msg string) error {
		if _, err := o.Store.WriteValidationError("aspects.input.error.json", artifacts.ValidationError{
			Kind:       "invalid_aspects",
			Message:    msg,
			TargetPath: o.Store.Rel(o.Store.IndexPath()),
			Errors:     []string{msg},
		}); err != nil {
			return errs.ExecFailureWrap(err, "writing input error artifact")
		}
		return errs.ExecFailure("%s", msg)
	}

	if len(requested) == 0 {
		return nil, failInput("no aspects to run")
	}

	normalized := make([]string, 0, len(requested))
	for _, a := range requested {
		n, err := Normalize(a)
		if err != nil {
			return nil, failInput(err.Error())
		}
		normalized = append(normalized, n)
	}

	seen := make(map[string]bool, len(normalized))
	for _, a := range normalized {
		if seen[a] {
			return nil, failInput("duplicate aspects after normalization")
		}
		seen[a] = true
	}

	allowed := o.Allowed
	if allowed == nil {
		allowed = Known
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	var unknown []string
	for _, a := range normalized {
		if !allowedSet[a] {
			unknown = append(unknown, a)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, failInput(fmt.Sprintf("unknown aspects: %s", strings.Join(unknown, ", ")))
	}

	if len(normalized) > o.MaxLLMCalls {
		return nil, failInput(fmt.Sprintf("too many aspects: %d (max_llm_calls=%d)", len(normalized), o.MaxLLMCalls))
	}
	return normalized, nil
}

// runAspect executes one aspect and converts any failure into an outcome
// plus on-disk error artifacts. It never returns an error.
func (o *Orchestrator) runAspect(ctx context.Context, logger *zap.Logger, a, scopeID, bundle, reference string) Outcome {
	aspectBundle := bundle
	if o.BundleFor != nil {
		aspectBundle = o.BundleFor(a)
	}
	aspectReference := reference
	if o.ReferenceFor != nil {
		aspectReference = o.ReferenceFor(a)
	}
	var env map[string]string
	if o.EnvFor != nil {
		env = o.EnvFor(a)
	}

	resultPath, err := RunOne(ctx, o.Store, o.Runner, o.Templates, RunRequest{
		Aspect:    a,
		ScopeID:   scopeID,
		Bundle:    aspectBundle,
		Reference: aspectReference,
		Timeout:   o.Timeout,
		Env:       env,
	})
	if err == nil {
		logger.Debug("aspect completed", zap.String("aspect", a))
		return Outcome{Aspect: a, Ok: true, ResultPath: resultPath}
	}

	kind := errs.Kind(err)
	msg := err.Error()
	if kind == "unexpected" {
		msg = "unexpected error: " + msg
	}
	logger.Warn("aspect failed", zap.String("aspect", a), zap.String("kind", kind), zap.Error(err))

	errPath := o.Store.AspectErrorPath(a)
	if werr := o.Store.WriteJSON(errPath, aspectError{
		SchemaVersion: 1,
		Aspect:        a,
		Kind:          kind,
		Message:       msg,
	}); werr != nil {
		logger.Warn("writing aspect error artifact", zap.Error(werr))
	}

	// Leave a failure artifact under errors/ for downstream gates, unless
	// RunOne already wrote a schema error for this same failure.
	if kind != "blocked" {
		schemaErr := filepath.Join(o.Store.Root(), "errors", a+".schema.error.json")
		if _, statErr := os.Stat(schemaErr); os.IsNotExist(statErr) {
			if _, werr := o.Store.WriteValidationError(a+"."+kind+".error.json", artifacts.ValidationError{
				Kind:       kind,
				Message:    msg,
				TargetPath: o.Store.Rel(o.Store.AspectResultPath(a)),
				Errors:     []string{},
				Extra:      map[string]any{"aspect": a},
			}); werr != nil {
				logger.Warn("writing failure artifact", zap.Error(werr))
			}
		}
	}

	return Outcome{Aspect: a, Ok: false, ResultPath: errPath, ErrorKind: kind, ErrorMessage: msg}
}

func (o *Orchestrator) writeIndex(scopeID string, outcomes []Outcome) (string, error) {
	indexed := make([]Outcome, len(outcomes))
	for i, oc := range outcomes {
		rel := ""
		if oc.ResultPath != "" {
			if r, err := filepath.Rel(o.Store.Root(), oc.ResultPath); err == nil {
				rel = filepath.ToSlash(r)
			} else {
				rel = oc.ResultPath
			}
		}
		oc.ResultPath = rel
		indexed[i] = oc
	}
	path := o.Store.IndexPath()
	if err := o.Store.WriteJSON(path, Index{
		SchemaVersion: 1,
		ScopeID:       scopeID,
		MaxLLMCalls:   o.MaxLLMCalls,
		Aspects:       indexed,
	}); err != nil {
		return "", errs.ExecFailureWrap(err, "writing aspect index")
	}
	return path, nil
}
