package aspect

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/facetlabs/facet/internal/errs"
)

const baseTemplate = `You are a strict, expert code reviewer examining one aspect of a change: {{ASPECT_NAME}}.

Scope under review: {{SCOPE_ID}}

Rules:
1. Review ONLY the lines shown in the context bundle below. Do not speculate about code you cannot see.
2. Every finding MUST cite evidence: a sources array of "path#Lstart-Lend" references pointing at bundle lines that support it.
3. Priorities: P0 release-blocking defect, P1 serious defect, P2 should fix, P3 nit.
4. Ask a question instead of guessing when the bundle is insufficient to judge.
5. Keep titles under 120 characters and bodies concrete and actionable.

{{ASPECT_PROMPT}}

You MUST respond with ONLY a JSON object, no markdown fences, no preamble, with this exact structure:
{
  "schema_version": 3,
  "scope_id": "{{SCOPE_ID}}",
  "status": "Approved" | "Approved with nits" | "Blocked" | "Question",
  "findings": [
    {
      "title": "...",
      "body": "...",
      "priority": "P0" | "P1" | "P2" | "P3",
      "code_location": {"repo_relative_path": "path/from/repo/root", "line_range": {"start": 1, "end": 1}},
      "sources": ["path#L1-L3"]
    }
  ],
  "questions": ["..."],
  "overall_explanation": "..."
}

Status rules: "Approved" means zero findings and zero questions; "Approved with nits" means only P2/P3 findings and zero questions; "Blocked" requires at least one P0/P1 finding; "Question" requires at least one question.

## Reference Notes
{{REFERENCE}}

## Context Bundle
{{CONTEXT_BUNDLE}}
`

var aspectTemplates = map[string]string{
	"correctness": `## Aspect: Correctness
Hunt for logic errors, off-by-one mistakes, unhandled error paths, nil/undefined dereferences, broken invariants, and behavior that contradicts what the surrounding code clearly intends.`,
	"readability": `## Aspect: Readability
Flag naming that misleads, control flow that hides intent, and comments that contradict the code. Do not bikeshed formatting or style that a formatter would settle.`,
	"testing": `## Aspect: Testing
Identify changed behavior that has no test exercising it, and tests whose assertions would still pass if the change regressed.`,
	"test-audit": `## Aspect: Test Audit
Audit the tests themselves: assertions that cannot fail, mocks that bypass the code under test, fixtures that drift from real inputs, and flaky constructs (time, ordering, shared state).`,
	"security": `## Aspect: Security
Look for injection, path traversal, secrets in code or logs, missing authentication or authorization on new surfaces, and unsafe handling of untrusted input.`,
	"performance": `## Aspect: Performance
Flag work that grows superlinearly with input, repeated I/O inside loops, unbounded memory growth, and blocking calls on hot paths. Ignore micro-optimizations without evidence of a hot path.`,
	"refactoring": `## Aspect: Refactoring
Point out duplication introduced by this change, abstractions that leak, and code moved without its invariants. Suggest only refactors that this diff itself makes necessary.`,
}

// tokenRE matches exactly the closed token set. Substitution is single-pass
// so token-shaped strings inside bundle or reference content are inert.
var tokenRE = regexp.MustCompile(`\{\{(ASPECT_NAME|SCOPE_ID|CONTEXT_BUNDLE|REFERENCE|ASPECT_PROMPT)\}\}`)

// Templates resolves prompt text for an aspect. The zero value serves the
// built-in templates; Dir points at a directory with base-review.md and
// aspects/<name>.md overrides.
type Templates struct {
	Dir string
}

// Render produces the full prompt for one aspect invocation.
func (t *Templates) Render(aspect, scopeID, bundle, reference string) (string, error) {
	base, aspectPrompt, err := t.load(aspect)
	if err != nil {
		return "", err
	}
	repl := map[string]string{
		"ASPECT_NAME":    aspect,
		"SCOPE_ID":       scopeID,
		"CONTEXT_BUNDLE": bundle,
		"REFERENCE":      reference,
		"ASPECT_PROMPT":  aspectPrompt,
	}
	return tokenRE.ReplaceAllStringFunc(base, func(m string) string {
		return repl[m[2:len(m)-2]]
	}), nil
}

func (t *Templates) load(aspect string) (base, aspectPrompt string, err error) {
	if t == nil || t.Dir == "" {
		aspectPrompt, ok := aspectTemplates[aspect]
		if !ok {
			return "", "", errs.ExecFailure("no prompt template for aspect %q", aspect)
		}
		return baseTemplate, aspectPrompt, nil
	}
	base, err = readTemplate(filepath.Join(t.Dir, "base-review.md"))
	if err != nil {
		return "", "", err
	}
	aspectPrompt, err = readTemplate(filepath.Join(t.Dir, "aspects", aspect+".md"))
	if err != nil {
		return "", "", err
	}
	return base, aspectPrompt, nil
}

func readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.ExecFailureWrap(err, "reading prompt template %s", path)
	}
	return string(data), nil
}
