package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/facetlabs/facet/internal/artifacts"
	"github.com/facetlabs/facet/internal/aspect"
	"github.com/facetlabs/facet/internal/bundle"
	"github.com/facetlabs/facet/internal/cache"
	"github.com/facetlabs/facet/internal/config"
	"github.com/facetlabs/facet/internal/diffparse"
	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/gitctx"
	"github.com/facetlabs/facet/internal/github"
	"github.com/facetlabs/facet/internal/output"
	"github.com/facetlabs/facet/internal/redact"
	"github.com/facetlabs/facet/internal/reference"
	"github.com/facetlabs/facet/internal/review"
	"github.com/facetlabs/facet/internal/viewpoint"
)

// Shared review flags
var (
	flagAspects      string
	flagPreset       string
	flagMaxLLMCalls  int
	flagMaxWorkers   int
	flagTimeout      int
	flagContextLines int
	flagFormat       string
	flagOut          string
	flagPromptsDir   string
	flagNoCache      bool
	flagNoRedact     bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagAspects, "aspects", "", "Aspects to run (comma-separated)")
	cmd.Flags().StringVar(&flagPreset, "preset", "", "Builtin aspect preset (minimal, standard, full)")
	cmd.Flags().IntVar(&flagMaxLLMCalls, "max-llm-calls", 0, "Maximum LLM invocations per run")
	cmd.Flags().IntVar(&flagMaxWorkers, "max-workers", 0, "Maximum parallel aspect workers")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Per-aspect timeout in seconds")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (markdown, text, json, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagPromptsDir, "prompts-dir", "", "Directory with prompt template overrides")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Disable the viewpoint response cache")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() (map[string]string, error) {
	m := make(map[string]string)
	switch {
	case flagPreset != "" && flagAspects != "":
		return nil, errs.ExecFailure("--preset and --aspects are mutually exclusive")
	case flagPreset != "":
		aspects, err := aspect.ResolvePreset(flagPreset)
		if err != nil {
			return nil, err
		}
		m["aspects"] = strings.Join(aspects, ",")
	case flagAspects != "":
		m["aspects"] = flagAspects
	}
	if flagMaxLLMCalls > 0 {
		m["maxLLMCalls"] = strconv.Itoa(flagMaxLLMCalls)
	}
	if flagMaxWorkers > 0 {
		m["maxWorkers"] = strconv.Itoa(flagMaxWorkers)
	}
	if flagTimeout > 0 {
		m["timeoutSeconds"] = strconv.Itoa(flagTimeout)
	}
	if flagContextLines > 0 {
		m["contextLines"] = strconv.Itoa(flagContextLines)
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagPromptsDir != "" {
		m["promptsDir"] = flagPromptsDir
	}
	if flagNoCache {
		m["cache.enabled"] = "false"
	}
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	return m, nil
}

// evidenceSummary is the evidence.json artifact: what the evidence policy
// did across the whole run.
type evidenceSummary struct {
	SchemaVersion int                           `json:"schema_version"`
	ScopeID       string                        `json:"scope_id"`
	Totals        evidenceTotals                `json:"totals"`
	PerAspect     map[string]review.PolicyStats `json:"per_aspect"`
}

type evidenceTotals struct {
	AspectsTotal    int `json:"aspects_total"`
	AspectsOk       int `json:"aspects_ok"`
	AspectsFailed   int `json:"aspects_failed"`
	TotalIn         int `json:"total_in"`
	TotalOut        int `json:"total_out"`
	ExcludedCount   int `json:"excluded_count"`
	DowngradedCount int `json:"downgraded_count"`
	VerifiedCount   int `json:"verified_true_count"`
}

// runPipeline executes the full review for one already-acquired diff:
// artifact setup, reference doc collection, bundle construction, aspect
// orchestration, evidence policy, and summary merge. refRoot is the tree
// the reference allowlist is resolved against.
//
// The returned summary is non-nil whenever a summary document was written,
// including blocked runs; the error then still carries the blocked state.
// On an execution failure the summary is nil and stale summary artifacts
// have been cleared so a broken run never leaves an approved summary
// behind.
func runPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger, store *artifacts.Store, scopeID, refRoot, patch string) (*review.Summary, error) {
	if cfg.Privacy.RedactSecrets {
		patch = redact.Secrets(patch)
	} else {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}

	if _, err := store.WriteRunMeta(scopeID); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing run metadata")
	}
	if err := store.WriteDiffPatch(patch); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing diff patch")
	}

	collector := &reference.Collector{Root: refRoot}
	refContents, warnings := collector.Collect(reference.DefaultAllowlist())
	refText, refWarnings := reference.BuildMarkdown(refContents, reference.DefaultMaxLines)
	warnings = append(warnings, refWarnings...)
	if err := store.WriteReferenceBundle(refText); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing reference bundle")
	}

	// Reference lines are reserved first; the diff excerpt spends what is
	// left of the total line budget.
	diffBudget := cfg.MaxTotalLines - strings.Count(refText, "\n")
	if diffBudget < 0 {
		diffBudget = 0
	}
	blocks, diffWarnings := diffparse.Parse(patch)
	warnings = append(warnings, diffWarnings...)
	bundleText, bundleWarnings := bundle.Build(blocks, diffBudget, cfg.MaxFileLines)
	warnings = append(warnings, bundleWarnings...)

	// The stored bundle is the diff excerpt plus the reference docs, joined
	// at a line boundary so both contribute to the evidence line index.
	contextText := refText
	if diffPart := strings.TrimRight(bundleText, "\n"); diffPart != "" {
		contextText = diffPart + "\n" + refText
	}
	if err := store.WriteContextBundle(contextText); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing context bundle")
	}
	if err := store.WriteWarnings(warnings); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing warnings")
	}

	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	runner := viewpoint.NewOpenCode(cfg.OpencodeBin, cfg.OpencodeAgent, cfg.OpencodeModel, timeout, store.Root(), c, logger)

	store.ClearAspectErrors(cfg.Aspects)

	orch := &aspect.Orchestrator{
		Store:       store,
		Runner:      runner,
		Templates:   &aspect.Templates{Dir: cfg.PromptsDir},
		MaxLLMCalls: cfg.MaxLLMCalls,
		MaxWorkers:  cfg.MaxWorkers,
		Timeout:     timeout,
		Logger:      logger,
	}
	outcomes, runErr := orch.Run(ctx, scopeID, bundleText, refText, cfg.Aspects)
	if runErr != nil && !errs.IsBlocked(runErr) {
		// A broken run must not leave a summary from a previous
		// successful one lying around.
		store.ClearSummary()
		return nil, runErr
	}

	idx := bundle.ParseIndex(contextText)
	reviews := make(map[string]review.AspectReview)
	evidence := evidenceSummary{
		SchemaVersion: 1,
		ScopeID:       scopeID,
		PerAspect:     make(map[string]review.PolicyStats),
	}
	for _, oc := range outcomes {
		evidence.Totals.AspectsTotal++
		if !oc.Ok {
			evidence.Totals.AspectsFailed++
			continue
		}
		ar, err := applyAspectPolicy(store, oc.Aspect, idx, &evidence)
		if err != nil {
			store.ClearSummary()
			return nil, err
		}
		reviews[oc.Aspect] = ar
		evidence.Totals.AspectsOk++
	}
	if err := store.WriteJSON(store.EvidencePath(), evidence); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing evidence summary")
	}

	summary := review.Merge(scopeID, reviews)
	if runErr != nil {
		// Blocked aspect execution must not surface as an Approved
		// summary just because the surviving aspects were clean.
		summary.Status = review.StatusBlocked
		summary.OverallExplanation = runErr.Error()
		for _, oc := range outcomes {
			if !oc.Ok {
				summary.AspectStatuses[oc.Aspect] = review.StatusBlocked
			}
		}
	}

	if err := store.WriteJSON(store.SummaryPath(), summary); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing review summary")
	}
	if err := store.WriteText(store.SummaryMarkdownPath(), output.FormatSummaryMarkdown(&summary)); err != nil {
		return nil, errs.ExecFailureWrap(err, "writing review summary markdown")
	}

	if runErr == nil && summary.Status == review.StatusBlocked {
		runErr = errs.Blocked("Review is blocked. See: %s", store.Rel(store.SummaryPath()))
	}
	return &summary, runErr
}

// applyAspectPolicy reads one successful aspect result, preserves the raw
// review next to it, applies the evidence policy, and rewrites the
// canonical result so downstream consumers only ever see post-policy
// findings.
func applyAspectPolicy(store *artifacts.Store, name string, idx bundle.Index, evidence *evidenceSummary) (review.AspectReview, error) {
	resultPath := store.AspectResultPath(name)
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return review.AspectReview{}, errs.ExecFailureWrap(err, "reading aspect result for %s", name)
	}
	var ar review.AspectReview
	if err := json.Unmarshal(raw, &ar); err != nil {
		return review.AspectReview{}, errs.ExecFailureWrap(err, "decoding aspect result for %s", name)
	}

	if err := store.WriteJSON(store.AspectRawPath(name), json.RawMessage(raw)); err != nil {
		return review.AspectReview{}, errs.ExecFailureWrap(err, "preserving raw aspect result for %s", name)
	}

	findings, stats := review.ApplyPolicy(ar.Findings, idx)
	ar.Findings = findings
	ar.Status = review.RecomputeStatus(findings, ar.Questions)

	if err := store.WriteJSON(resultPath, ar); err != nil {
		return review.AspectReview{}, errs.ExecFailureWrap(err, "rewriting aspect result for %s", name)
	}

	evidence.PerAspect[name] = stats
	evidence.Totals.TotalIn += stats.TotalIn
	evidence.Totals.TotalOut += stats.TotalOut
	evidence.Totals.ExcludedCount += stats.ExcludedCount
	evidence.Totals.DowngradedCount += stats.DowngradedCount
	evidence.Totals.VerifiedCount += stats.VerifiedCount
	return ar, nil
}

// runLocalReview drives the pipeline for a locally acquired diff and
// renders the summary. The returned error decides the exit code.
func runLocalReview(cfg config.Config, diff gitctx.Result) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	store, err := artifacts.Open(".")
	if err != nil {
		return err
	}

	scopeID := gitctx.LocalScopeID(diff.Repo.Head, diff.Patch)
	summary, runErr := runPipeline(context.Background(), cfg, logger, store, scopeID, diff.Repo.Root, diff.Patch)
	if summary != nil {
		if err := output.WriteSummary(summary, cfg.Format, flagOut); err != nil {
			if runErr == nil {
				return errs.ExecFailureWrap(err, "writing output")
			}
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		}
	}
	return runErr
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long:  "Review code changes aspect by aspect. Use subcommands to specify what to review.",
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		diff, err := gitctx.Unstaged(cfg.ContextLines)
		if err != nil {
			return err
		}
		return runLocalReview(cfg, diff)
	},
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		diff, err := gitctx.Staged(cfg.ContextLines)
		if err != nil {
			return err
		}
		return runLocalReview(cfg, diff)
	},
}

var reviewCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Review a specific commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		diff, err := gitctx.Commit(args[0], cfg.ContextLines)
		if err != nil {
			return err
		}
		return runLocalReview(cfg, diff)
	},
}

var flagMergeBase bool

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		diff, err := gitctx.Range(args[0], flagMergeBase, cfg.ContextLines)
		if err != nil {
			return err
		}
		return runLocalReview(cfg, diff)
	},
}

var (
	flagPostSummary bool
	flagPostInline  bool
)

var prRefRE = regexp.MustCompile(`^([^/#\s]+)/([^/#\s]+)#(\d+)$`)

// parsePRRef parses "owner/repo#123".
func parsePRRef(ref string) (owner, repo string, number int, err error) {
	m := prRefRE.FindStringSubmatch(ref)
	if m == nil {
		return "", "", 0, errs.ExecFailure("invalid PR reference %q (expected owner/repo#number)", ref)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil || number < 1 {
		return "", "", 0, errs.ExecFailure("invalid PR number in %q", ref)
	}
	return m[1], m[2], number, nil
}

var reviewPRCmd = &cobra.Command{
	Use:   "pr <owner>/<repo>#<number>",
	Short: "Review a GitHub pull request",
	Long: "Review a GitHub pull request by fetching its diff via the GitHub API.\n" +
		"Requires GITHUB_TOKEN. With --post the merged summary is published as a\n" +
		"PR comment; --inline additionally anchors blocking findings to diff lines.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		if flagPostSummary {
			overrides["github.postSummary"] = "true"
		}
		if flagPostInline {
			overrides["github.postInline"] = "true"
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		owner, repo, number, err := parsePRRef(args[0])
		if err != nil {
			return err
		}
		return runPRReview(cfg, owner, repo, number)
	},
}

// runPRReview fetches PR input, runs the pipeline, and optionally posts
// the results back to the pull request. Every mutation of the PR is
// guarded by head-SHA checks so a force-push mid-run can never leave
// comments describing a diff that no longer exists.
func runPRReview(cfg config.Config, owner, repo string, number int) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	client, err := github.NewClient()
	if err != nil {
		return err
	}

	headSHA, err := client.PRHead(ctx, owner, repo, number)
	if err != nil {
		return err
	}
	patch, err := client.PRDiff(ctx, owner, repo, number)
	if err != nil {
		return err
	}

	store, err := artifacts.Open(".")
	if err != nil {
		return err
	}

	// PR reviews run from a checkout of the PR branch (CI), so reference
	// docs are resolved against the current working tree.
	scopeID := gitctx.PRScopeID(owner, repo, number, headSHA)
	summary, runErr := runPipeline(ctx, cfg, logger, store, scopeID, ".", patch)
	if summary != nil {
		if err := output.WriteSummary(summary, cfg.Format, flagOut); err != nil {
			if runErr == nil {
				return errs.ExecFailureWrap(err, "writing output")
			}
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		}
	}
	if summary == nil || !(cfg.GitHub.PostSummary || cfg.GitHub.PostInline) {
		return runErr
	}
	if runErr != nil && !errs.IsBlocked(runErr) {
		return runErr
	}

	currentHead, err := client.PRHead(ctx, owner, repo, number)
	if err != nil {
		store.ClearSummary()
		return err
	}
	if currentHead != headSHA {
		store.ClearSummary()
		return errs.ExecFailure("PR head changed before summary posting; rerun review on latest head")
	}

	postRes, err := github.PostSummary(ctx, client, owner, repo, number, headSHA, summary)
	if err != nil {
		store.ClearSummary()
		return err
	}
	logger.Info("summary comment posted",
		zap.String("mode", postRes.Mode),
		zap.Int64("comment_id", postRes.CommentID),
		zap.Int("deduped", postRes.Deduped))

	latestHead, err := client.PRHead(ctx, owner, repo, number)
	if err != nil {
		store.ClearSummary()
		return err
	}
	if latestHead != headSHA {
		store.ClearSummary()
		return errs.ExecFailure("PR head changed during summary posting; rerun review on latest head")
	}

	if cfg.GitHub.PostInline {
		inlineRes, inlineErr := github.PostInline(ctx, client, owner, repo, number, headSHA, headSHA, summary, patch)
		logger.Info("inline comments reconciled",
			zap.String("mode", inlineRes.Mode),
			zap.Int("created", inlineRes.Created),
			zap.Int("deleted", inlineRes.Deleted),
			zap.Int("eligible", inlineRes.EligibleCount))
		if inlineErr != nil {
			if errs.IsExecFailure(inlineErr) {
				store.ClearSummary()
			}
			return inlineErr
		}
	}
	return runErr
}

func init() {
	reviewCmd.AddCommand(reviewUnstagedCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewCommitCmd)
	reviewCmd.AddCommand(reviewRangeCmd)
	reviewCmd.AddCommand(reviewPRCmd)

	for _, cmd := range []*cobra.Command{
		reviewUnstagedCmd,
		reviewStagedCmd,
		reviewCommitCmd,
		reviewRangeCmd,
		reviewPRCmd,
	} {
		addReviewFlags(cmd)
	}

	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Diff against the merge base for branch comparisons")

	reviewPRCmd.Flags().BoolVar(&flagPostSummary, "post", false, "Post the merged summary as a PR comment")
	reviewPRCmd.Flags().BoolVar(&flagPostInline, "inline", false, "Post P0/P1 findings as inline review comments (implies --post)")
}
