package viewpoint

import (
	"context"
	"encoding/json"
	"time"
)

// Request describes one capability invocation.
type Request struct {
	// Aspect names the review viewpoint, used for transcript artifact paths.
	Aspect string
	// Prompt is the fully rendered prompt text.
	Prompt string
	// Timeout bounds the invocation; zero means the runner's default.
	Timeout time.Duration
	// Env holds additional environment variables for the subprocess,
	// allowing callers to vary access policy per aspect.
	Env map[string]string
}

// Result carries the capability's raw payload. The payload is opaque until
// schema validation; nothing may consume its fields before then.
type Result struct {
	Payload json.RawMessage
	// TranscriptDir is where the runner left stdout/stderr artifacts, empty
	// when the invocation never started or was served from cache.
	TranscriptDir string
}

// Runner is the external text-generation capability. Implementations fail
// with a blocked error when the capability itself is unavailable and an
// execution-failure error for timeouts, non-zero exits, or malformed output.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to the Runner interface, for tests and embedding.
type Func func(ctx context.Context, req Request) (Result, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
