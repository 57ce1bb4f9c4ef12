package gitctx

import (
	"crypto/sha256"
	"fmt"
	"os/exec"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
)

// RepoMeta contains git repository metadata for the working directory.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// Result holds an acquired patch and how it was produced.
type Result struct {
	Patch string
	// Mode is unstaged, staged, commit, or range.
	Mode string
	// Rev is the commit SHA or revision range when Mode names one.
	Rev  string
	Repo RepoMeta
}

// GetRepoMeta collects repository metadata from git. A missing repository
// is a blocked condition, not a defect.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, errs.BlockedWrap(err, "not a git repository")
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the diff of working tree vs index.
func Unstaged(contextLines int) (Result, error) {
	patch, err := gitOutput(diffArgs(contextLines)...)
	if err != nil {
		return Result{}, errs.ExecFailureWrap(err, "git diff")
	}
	return buildResult(patch, "unstaged", "")
}

// Staged returns the diff of index vs HEAD.
func Staged(contextLines int) (Result, error) {
	patch, err := gitOutput(append(diffArgs(contextLines), "--cached")...)
	if err != nil {
		return Result{}, errs.ExecFailureWrap(err, "git diff --cached")
	}
	return buildResult(patch, "staged", "")
}

// Commit returns the diff for a specific commit vs its parent, falling back
// to git show for a parentless initial commit.
func Commit(sha string, contextLines int) (Result, error) {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return Result{}, errs.ExecFailure("commit sha is required")
	}
	patch, err := gitOutput(append(diffArgs(contextLines), sha+"~1", sha)...)
	if err != nil {
		showArgs := []string{"show", "--format="}
		if contextLines > 0 {
			showArgs = append(showArgs, fmt.Sprintf("-U%d", contextLines))
		}
		patch, err = gitOutput(append(showArgs, sha)...)
		if err != nil {
			return Result{}, errs.ExecFailureWrap(err, "git show %s", sha)
		}
	}
	return buildResult(patch, "commit", sha)
}

// Range returns the combined diff for a revision range. With mergeBase,
// a two-dot range is widened to three dots so the comparison starts at the
// merge base rather than the tip of the left side.
func Range(revRange string, mergeBase bool, contextLines int) (Result, error) {
	revRange = strings.TrimSpace(revRange)
	if !strings.Contains(revRange, "..") {
		return Result{}, errs.ExecFailure("invalid revision range: %q (want a..b)", revRange)
	}
	diffRange := revRange
	if mergeBase && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	patch, err := gitOutput(append(diffArgs(contextLines), diffRange)...)
	if err != nil {
		return Result{}, errs.ExecFailureWrap(err, "git diff %s", revRange)
	}
	return buildResult(patch, "range", revRange)
}

// LocalScopeID derives the deterministic scope identifier binding a local
// run to both the HEAD commit and the exact patch content.
func LocalScopeID(head, patch string) string {
	return fmt.Sprintf("local:%s:%s", shortRef(head), shortHash(patch))
}

// PRScopeID derives the scope identifier for a pull-request review.
func PRScopeID(owner, repo string, number int, headSHA string) string {
	return fmt.Sprintf("pr:%s/%s#%d@%s", owner, repo, number, shortRef(headSHA))
}

func shortRef(sha string) string {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return "none"
	}
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func shortHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:6])
}

func diffArgs(contextLines int) []string {
	args := []string{"diff"}
	if contextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", contextLines))
	}
	return args
}

func buildResult(patch, mode, rev string) (Result, error) {
	meta, err := GetRepoMeta()
	if err != nil {
		return Result{}, err
	}
	return Result{Patch: patch, Mode: mode, Rev: rev, Repo: meta}, nil
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
