package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facetlabs/facet/internal/errs"
	"github.com/facetlabs/facet/internal/output"
	"github.com/facetlabs/facet/internal/review"
)

// SummaryMarker identifies the managed summary comment so repeated runs
// update it in place instead of stacking new comments.
const SummaryMarker = "<!-- facet:summary:v1 -->"

// SummaryClient is the API surface summary posting needs. *Client
// satisfies it; tests substitute fakes.
type SummaryClient interface {
	IssueComments(ctx context.Context, owner, repo string, pr int) ([]IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, pr int, body string) (IssueComment, error)
	UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (IssueComment, error)
	DeleteIssueComment(ctx context.Context, owner, repo string, commentID int64) error
}

// SummaryResult reports what PostSummary did.
type SummaryResult struct {
	Mode      string `json:"mode"` // created, updated, or reconciled
	CommentID int64  `json:"comment_id"`
	Deduped   int    `json:"deduped"`
}

// FormatSummaryComment renders the PR summary comment body: the marker,
// the reviewed head, then the standard markdown report.
func FormatSummaryComment(summary *review.Summary, headSHA string) string {
	var b strings.Builder
	b.WriteString(SummaryMarker + "\n\n")
	if headSHA != "" {
		fmt.Fprintf(&b, "Reviewed head: `%s`\n\n", headSHA)
	}
	b.WriteString(output.FormatSummaryMarkdown(summary))
	return b.String()
}

// PostSummary upserts the single managed summary comment on a pull request.
//
// Concurrent runs can each create a marker comment; the protocol converges
// on one: the latest (highest-ID) marker comment wins the body, and every
// other marker comment is deleted. Deletions racing with another run are
// tolerated.
func PostSummary(ctx context.Context, client SummaryClient, owner, repo string, pr int, headSHA string, summary *review.Summary) (SummaryResult, error) {
	body := FormatSummaryComment(summary, headSHA)

	comments, err := client.IssueComments(ctx, owner, repo, pr)
	if err != nil {
		return SummaryResult{}, err
	}
	existing := markerComments(comments)

	if len(existing) > 0 {
		return updateSummary(ctx, client, owner, repo, pr, body, existing)
	}

	created, err := client.CreateIssueComment(ctx, owner, repo, pr, body)
	if err != nil {
		return SummaryResult{}, err
	}

	keepID := created.ID
	mode := "created"
	latest, err := latestMarkerComment(ctx, client, owner, repo, pr)
	if err != nil {
		return SummaryResult{}, err
	}
	if latest != nil && latest.ID > 0 {
		keepID = latest.ID
		if latest.ID != created.ID {
			// Another run created a newer comment between our create and
			// list; converge on theirs.
			mode = "reconciled"
		}
		if _, err := client.UpdateIssueComment(ctx, owner, repo, keepID, body); err != nil {
			return SummaryResult{}, err
		}
	}

	removed, err := dedupeMarkerComments(ctx, client, owner, repo, pr, keepID)
	if err != nil {
		return SummaryResult{}, err
	}
	return SummaryResult{Mode: mode, CommentID: keepID, Deduped: removed}, nil
}

func updateSummary(ctx context.Context, client SummaryClient, owner, repo string, pr int, body string, existing []IssueComment) (SummaryResult, error) {
	target := newestComment(existing)
	if target == nil {
		return SummaryResult{}, errs.ExecFailure("marker comments found but none have a valid id")
	}

	keepID := target.ID
	updated, err := client.UpdateIssueComment(ctx, owner, repo, keepID, body)
	if err != nil {
		return SummaryResult{}, err
	}
	if updated.ID > 0 {
		keepID = updated.ID
	}

	latest, err := latestMarkerComment(ctx, client, owner, repo, pr)
	if err != nil {
		return SummaryResult{}, err
	}
	if latest != nil && latest.ID > 0 && latest.ID != keepID {
		if _, err := client.UpdateIssueComment(ctx, owner, repo, latest.ID, body); err != nil {
			return SummaryResult{}, err
		}
		keepID = latest.ID
	}

	removed, err := dedupeMarkerComments(ctx, client, owner, repo, pr, keepID)
	if err != nil {
		return SummaryResult{}, err
	}
	return SummaryResult{Mode: "updated", CommentID: keepID, Deduped: removed}, nil
}

func markerComments(comments []IssueComment) []IssueComment {
	var out []IssueComment
	for _, c := range comments {
		if strings.Contains(c.Body, SummaryMarker) {
			out = append(out, c)
		}
	}
	return out
}

func newestComment(comments []IssueComment) *IssueComment {
	var best *IssueComment
	for i := range comments {
		if comments[i].ID <= 0 {
			continue
		}
		if best == nil || comments[i].ID > best.ID {
			best = &comments[i]
		}
	}
	return best
}

func latestMarkerComment(ctx context.Context, client SummaryClient, owner, repo string, pr int) (*IssueComment, error) {
	comments, err := client.IssueComments(ctx, owner, repo, pr)
	if err != nil {
		return nil, err
	}
	return newestComment(markerComments(comments)), nil
}

func dedupeMarkerComments(ctx context.Context, client SummaryClient, owner, repo string, pr int, keepID int64) (int, error) {
	comments, err := client.IssueComments(ctx, owner, repo, pr)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, c := range markerComments(comments) {
		if c.ID <= 0 || c.ID == keepID {
			continue
		}
		if err := client.DeleteIssueComment(ctx, owner, repo, c.ID); err != nil {
			// Concurrent runs may delete the same duplicate; treat as
			// already converged.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}
