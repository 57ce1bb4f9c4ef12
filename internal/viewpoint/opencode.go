package viewpoint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/facetlabs/facet/internal/cache"
	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/redact"
)

// DefaultTimeout bounds a single viewpoint invocation unless the caller
// supplies its own.
const DefaultTimeout = 300 * time.Second

// maxTranscriptBytes caps how much subprocess output is kept per stream in
// transcript artifacts.
const maxTranscriptBytes = 100 * 1024

// OpenCode runs the opencode CLI agent headless, one viewpoint per
// invocation, reading the prompt from stdin and emitting JSONL events.
type OpenCode struct {
	Bin     string
	Agent   string
	Model   string
	Timeout time.Duration

	// OutDir receives redacted transcript artifacts under
	// opencode/<aspect-slug>/. Empty disables transcripts.
	OutDir string

	Cache  *cache.Cache
	Logger *zap.Logger
}

// NewOpenCode builds a runner with defaults filled in.
func NewOpenCode(bin, agent, model string, timeout time.Duration, outDir string, c *cache.Cache, logger *zap.Logger) *OpenCode {
	if bin == "" {
		bin = "opencode"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenCode{Bin: bin, Agent: agent, Model: model, Timeout: timeout, OutDir: outDir, Cache: c, Logger: logger}
}

// Run implements Runner.
//
// A missing binary is a blocked error; a timeout, non-zero exit, or
// malformed event stream is an execution failure. Transcripts are secret-
// redacted and size-capped before they touch disk.
func (o *OpenCode) Run(ctx context.Context, req Request) (Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.Timeout
	}

	key := cache.BuildCacheKey(o.Bin, o.Agent+"/"+o.Model, req.Prompt)
	if o.Cache != nil {
		if payload, ok := o.Cache.Get(key); ok {
			o.Logger.Debug("viewpoint cache hit", zap.String("aspect", req.Aspect))
			return Result{Payload: payload}, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"run", "--format", "json"}
	if o.Agent != "" {
		args = append(args, "--agent", o.Agent)
	}
	if o.Model != "" {
		args = append(args, "-m", o.Model)
	}

	cmd := exec.CommandContext(runCtx, o.Bin, args...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = mergedEnv(req.Env)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	transcriptDir := o.writeTranscripts(req.Aspect, stdout.Bytes(), stderr.Bytes())

	switch {
	case err == nil:
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return Result{TranscriptDir: transcriptDir}, errs.Blocked(
			"`%s` is required. Install OpenCode and ensure it is on PATH", o.Bin)
	case runCtx.Err() == context.DeadlineExceeded:
		return Result{TranscriptDir: transcriptDir}, errs.ExecFailure(
			"viewpoint %s timed out after %s", req.Aspect, timeout)
	default:
		return Result{TranscriptDir: transcriptDir}, errs.ExecFailure(
			"viewpoint %s failed: %v: %s", req.Aspect, err, redact.Secrets(tail(stderr.String(), 2000)))
	}

	payload, err := ExtractPayload(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		return Result{TranscriptDir: transcriptDir}, err
	}

	o.Logger.Debug("viewpoint completed",
		zap.String("aspect", req.Aspect),
		zap.Duration("elapsed", elapsed),
		zap.Int("payload_bytes", len(payload)))

	if o.Cache != nil {
		if err := o.Cache.Put(key, payload); err != nil {
			o.Logger.Warn("viewpoint cache write failed", zap.Error(err))
		}
	}
	return Result{Payload: payload, TranscriptDir: transcriptDir}, nil
}

// writeTranscripts persists redacted, truncated stdout/stderr for diagnosis
// and returns the transcript directory ("" when disabled or on failure).
func (o *OpenCode) writeTranscripts(aspect string, stdout, stderr []byte) string {
	if o.OutDir == "" {
		return ""
	}
	dir := filepath.Join(o.OutDir, "opencode", slugify(aspect))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		o.Logger.Warn("transcript dir", zap.Error(err))
		return ""
	}
	for name, data := range map[string][]byte{"stdout.txt": stdout, "stderr.txt": stderr} {
		text := redact.Secrets(truncateMiddle(string(data), maxTranscriptBytes))
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o600); err != nil {
			o.Logger.Warn("transcript write", zap.Error(err))
		}
	}
	return dir
}

func mergedEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil // inherit
	}
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// slugify reduces an aspect name to a filesystem-safe slug with a short
// digest so distinct names can never collide.
func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevDash := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = slug[:60]
	}
	if slug == "" {
		slug = "viewpoint"
	}
	digest := sha256.Sum256([]byte(lower))
	return fmt.Sprintf("%s-%x", slug, digest[:4])
}

// truncateMiddle keeps the head and a 4KiB tail of oversized output.
func truncateMiddle(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const marker = "\n\n[TRUNCATED]\n\n"
	budget := maxBytes - len(marker)
	if budget <= 0 {
		return s[:maxBytes]
	}
	tailLen := min(4096, budget)
	headLen := budget - tailLen
	return s[:headLen] + marker + s[len(s)-tailLen:]
}

func tail(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	return "... [truncated]" + s[len(s)-(maxChars-20):]
}
