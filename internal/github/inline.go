package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/review"
)

const (
	// InlineMarkerPrefix and InlineMarkerSuffix delimit the fingerprint
	// embedded in every managed inline comment.
	InlineMarkerPrefix = "<!-- facet:inline:v1 fp="
	InlineMarkerSuffix = " -->"

	// InlineLimit caps the number of inline comments a run may manage.
	InlineLimit = 150
)

// InlineClient is the API surface inline posting needs. *Client satisfies
// it; tests substitute fakes.
type InlineClient interface {
	PRHead(ctx context.Context, owner, repo string, pr int) (string, error)
	Viewer(ctx context.Context) (string, error)
	ReviewComments(ctx context.Context, owner, repo string, pr int) ([]ReviewComment, error)
	CreateReviewComment(ctx context.Context, owner, repo string, pr int, body, commitID, path string, position int) error
	DeleteReviewComment(ctx context.Context, owner, repo string, commentID int64) error
}

// InlineCandidate is one blocking finding considered for inline posting.
type InlineCandidate struct {
	Finding     review.Finding
	Fingerprint string
	Path        string
	StartLine   int
	EndLine     int
	Position    int // diff position; 0 when unmapped
	Eligible    bool
	SkipReason  string // invalid_code_location or line_not_mapped
}

// UnmappedFinding describes a blocking finding that could not be anchored
// to the diff.
type UnmappedFinding struct {
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
	Line        int    `json:"line"`
	Priority    string `json:"priority"`
	Reason      string `json:"reason"`
}

// InlineResult reports what PostInline did.
type InlineResult struct {
	Mode            string            `json:"mode"` // ok, blocked_over_limit, or blocked_unmappable_locations
	Blocked         bool              `json:"blocked"`
	EligibleCount   int               `json:"eligible_count"`
	UnmappableCount int               `json:"unmappable_count,omitempty"`
	Created         int               `json:"created"`
	Deleted         int               `json:"deleted"`
	Unmapped        []UnmappedFinding `json:"unmapped_findings,omitempty"`
}

// SelectInlineCandidates picks the P0/P1 findings from a merged summary and
// resolves each to a diff position. Findings that cannot be anchored are
// returned with Eligible=false and a skip reason so the caller can report
// exactly what was left out.
func SelectInlineCandidates(summary *review.Summary, lineMap PositionMap) []InlineCandidate {
	var out []InlineCandidate
	for _, f := range summary.Findings {
		if !review.Blocking(f.Priority) {
			continue
		}

		c := InlineCandidate{
			Finding:     f,
			Fingerprint: review.Fingerprint(f),
			Path:        strings.TrimSpace(f.CodeLocation.RepoRelativePath),
			StartLine:   f.CodeLocation.LineRange.Start,
			EndLine:     f.CodeLocation.LineRange.End,
		}
		if c.StartLine < 0 {
			c.StartLine = 0
		}
		if c.EndLine < 0 {
			c.EndLine = 0
		}

		if c.Path == "" || c.StartLine <= 0 {
			c.SkipReason = "invalid_code_location"
			out = append(out, c)
			continue
		}

		pos := lineMap.Resolve(c.Path, c.StartLine)
		if pos <= 0 {
			c.SkipReason = "line_not_mapped"
			out = append(out, c)
			continue
		}

		c.Position = pos
		c.Eligible = true
		out = append(out, c)
	}
	return out
}

// PostInline reconciles the PR's inline comments with the summary's P0/P1
// findings: desired comments are created, stale ones deleted, and
// duplicates collapsed onto the highest-ID survivor. Every mutation is
// guarded by a head-SHA check so a force-push mid-run aborts instead of
// annotating the wrong commit.
//
// When any blocking finding cannot be anchored, or the eligible set exceeds
// InlineLimit, all managed inline comments are removed and a blocked error
// is returned alongside the result.
func PostInline(ctx context.Context, client InlineClient, owner, repo string, pr int, headSHA, expectedHeadSHA string, summary *review.Summary, diffPatch string) (InlineResult, error) {
	lineMap := BuildPositionMap(diffPatch)
	selected := SelectInlineCandidates(summary, lineMap)

	var eligible, ineligible []InlineCandidate
	for _, c := range selected {
		if c.Eligible && c.Position > 0 {
			eligible = append(eligible, c)
		} else {
			ineligible = append(ineligible, c)
		}
	}

	if len(eligible) > InlineLimit {
		deleted, err := deleteManagedInline(ctx, client, owner, repo, pr, expectedHeadSHA)
		if err != nil {
			return InlineResult{}, err
		}
		res := InlineResult{
			Mode:          "blocked_over_limit",
			Blocked:       true,
			EligibleCount: len(eligible),
			Deleted:       deleted,
		}
		return res, errs.Blocked("inline posting blocked: P0/P1 eligible findings exceed %d (count=%d)", InlineLimit, len(eligible))
	}

	if len(ineligible) > 0 {
		deleted, err := deleteManagedInline(ctx, client, owner, repo, pr, expectedHeadSHA)
		if err != nil {
			return InlineResult{}, err
		}
		res := InlineResult{
			Mode:            "blocked_unmappable_locations",
			Blocked:         true,
			EligibleCount:   len(eligible),
			UnmappableCount: len(ineligible),
			Deleted:         deleted,
		}
		for _, c := range ineligible {
			res.Unmapped = append(res.Unmapped, UnmappedFinding{
				Fingerprint: c.Fingerprint,
				Path:        c.Path,
				Line:        c.StartLine,
				Priority:    string(c.Finding.Priority),
				Reason:      c.SkipReason,
			})
		}
		return res, errs.Blocked("inline posting blocked: P0/P1 findings include %d unmappable code locations.%s",
			len(ineligible), unmappedExamples(res.Unmapped))
	}

	// Last occurrence wins when two findings share a fingerprint; order
	// follows first appearance.
	desired := make(map[string]InlineCandidate, len(eligible))
	var order []string
	for _, c := range eligible {
		if _, ok := desired[c.Fingerprint]; !ok {
			order = append(order, c.Fingerprint)
		}
		desired[c.Fingerprint] = c
	}

	viewer, err := client.Viewer(ctx)
	if err != nil {
		return InlineResult{}, err
	}
	existing, err := client.ReviewComments(ctx, owner, repo, pr)
	if err != nil {
		return InlineResult{}, err
	}

	existingByFP := make(map[string][]ReviewComment)
	for _, c := range existing {
		if strings.TrimSpace(c.User.Login) != viewer {
			continue
		}
		fp := extractFingerprint(c.Body)
		if fp == "" {
			continue
		}
		existingByFP[fp] = append(existingByFP[fp], c)
	}

	deleted := 0
	created := 0

	// Drop comments whose finding no longer exists.
	for fp, comments := range existingByFP {
		if _, ok := desired[fp]; ok {
			continue
		}
		for _, c := range comments {
			if c.ID <= 0 {
				continue
			}
			if err := guardedDelete(ctx, client, owner, repo, pr, expectedHeadSHA, c.ID); err != nil {
				return InlineResult{}, err
			}
			deleted++
		}
	}

	for _, fp := range order {
		candidate := desired[fp]
		body := formatInlineBody(candidate.Finding, fp)
		comments := existingByFP[fp]

		// A comment already at the right path and position survives; any
		// siblings are duplicates.
		var keep *ReviewComment
		for i := range comments {
			c := &comments[i]
			if strings.TrimSpace(c.Path) == candidate.Path && c.Position == candidate.Position {
				if keep == nil || c.ID > keep.ID {
					keep = c
				}
			}
		}

		if keep != nil {
			for _, c := range comments {
				if c.ID <= 0 || c.ID == keep.ID {
					continue
				}
				if err := guardedDelete(ctx, client, owner, repo, pr, expectedHeadSHA, c.ID); err != nil {
					return InlineResult{}, err
				}
				deleted++
			}
			continue
		}

		// Wrong anchor: replace entirely.
		for _, c := range comments {
			if c.ID <= 0 {
				continue
			}
			if err := guardedDelete(ctx, client, owner, repo, pr, expectedHeadSHA, c.ID); err != nil {
				return InlineResult{}, err
			}
			deleted++
		}

		if err := ensureHeadUnchanged(ctx, client, owner, repo, pr, expectedHeadSHA); err != nil {
			return InlineResult{}, err
		}
		if err := client.CreateReviewComment(ctx, owner, repo, pr, body, headSHA, candidate.Path, candidate.Position); err != nil {
			return InlineResult{}, err
		}
		created++
	}

	if err := ensureHeadUnchanged(ctx, client, owner, repo, pr, expectedHeadSHA); err != nil {
		return InlineResult{}, err
	}

	return InlineResult{
		Mode:          "ok",
		EligibleCount: len(eligible),
		Created:       created,
		Deleted:       deleted,
	}, nil
}

func ensureHeadUnchanged(ctx context.Context, client InlineClient, owner, repo string, pr int, expectedHeadSHA string) error {
	current, err := client.PRHead(ctx, owner, repo, pr)
	if err != nil {
		return err
	}
	if current != expectedHeadSHA {
		return errs.ExecFailure("PR head changed; skip stale inline mutation")
	}
	return nil
}

// guardedDelete removes one review comment with head-SHA checks before and
// after, tolerating a concurrent delete of the same comment.
func guardedDelete(ctx context.Context, client InlineClient, owner, repo string, pr int, expectedHeadSHA string, commentID int64) error {
	if err := ensureHeadUnchanged(ctx, client, owner, repo, pr, expectedHeadSHA); err != nil {
		return err
	}
	if err := client.DeleteReviewComment(ctx, owner, repo, commentID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// deleteManagedInline removes every inline comment this tool owns
// (authored by the viewer and carrying a fingerprint marker).
func deleteManagedInline(ctx context.Context, client InlineClient, owner, repo string, pr int, expectedHeadSHA string) (int, error) {
	if err := ensureHeadUnchanged(ctx, client, owner, repo, pr, expectedHeadSHA); err != nil {
		return 0, err
	}

	viewer, err := client.Viewer(ctx)
	if err != nil {
		return 0, err
	}
	existing, err := client.ReviewComments(ctx, owner, repo, pr)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, c := range existing {
		if strings.TrimSpace(c.User.Login) != viewer {
			continue
		}
		if extractFingerprint(c.Body) == "" {
			continue
		}
		if c.ID <= 0 {
			continue
		}
		if err := guardedDelete(ctx, client, owner, repo, pr, expectedHeadSHA, c.ID); err != nil {
			return deleted, err
		}
		if err := ensureHeadUnchanged(ctx, client, owner, repo, pr, expectedHeadSHA); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// extractFingerprint returns the fingerprint from a managed inline comment
// body, or "" if the body carries no marker line.
func extractFingerprint(body string) string {
	for _, line := range strings.Split(body, "\n") {
		s := strings.TrimSpace(line)
		if !strings.HasPrefix(s, InlineMarkerPrefix) || !strings.HasSuffix(s, InlineMarkerSuffix) {
			continue
		}
		return strings.TrimSpace(s[len(InlineMarkerPrefix) : len(s)-len(InlineMarkerSuffix)])
	}
	return ""
}

func formatInlineBody(f review.Finding, fingerprint string) string {
	var b strings.Builder
	b.WriteString(InlineMarkerPrefix + fingerprint + InlineMarkerSuffix + "\n")
	b.WriteString(strings.TrimSpace(fmt.Sprintf("[%s] %s", strings.TrimSpace(string(f.Priority)), strings.TrimSpace(f.Title))))
	if body := strings.TrimSpace(f.Body); body != "" {
		b.WriteString("\n\n" + body)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func unmappedExamples(unmapped []UnmappedFinding) string {
	var examples []string
	for _, u := range unmapped {
		if len(examples) == 3 {
			break
		}
		if u.Path == "" || u.Line <= 0 {
			continue
		}
		examples = append(examples, fmt.Sprintf("%s:%d(%s)", u.Path, u.Line, u.Reason))
	}
	if len(examples) == 0 {
		return ""
	}
	return " Examples: " + strings.Join(examples, ", ")
}
