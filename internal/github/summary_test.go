package github

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/facetlabs/facet/internal/review"
)

type fakeSummaryClient struct {
	comments []IssueComment
	nextID   int64
	updates  int
	deletes  int
}

func (f *fakeSummaryClient) IssueComments(_ context.Context, _, _ string, _ int) ([]IssueComment, error) {
	out := make([]IssueComment, len(f.comments))
	copy(out, f.comments)
	return out, nil
}

func (f *fakeSummaryClient) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) (IssueComment, error) {
	f.nextID++
	c := IssueComment{ID: f.nextID, Body: body}
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakeSummaryClient) UpdateIssueComment(_ context.Context, _, _ string, commentID int64, body string) (IssueComment, error) {
	f.updates++
	for i := range f.comments {
		if f.comments[i].ID == commentID {
			f.comments[i].Body = body
			return f.comments[i], nil
		}
	}
	return IssueComment{}, fmt.Errorf("%w: comment %d", ErrNotFound, commentID)
}

func (f *fakeSummaryClient) DeleteIssueComment(_ context.Context, _, _ string, commentID int64) error {
	f.deletes++
	for i := range f.comments {
		if f.comments[i].ID == commentID {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: comment %d", ErrNotFound, commentID)
}

func approvedSummary() *review.Summary {
	return &review.Summary{
		SchemaVersion: review.SchemaVersion,
		ScopeID:       "pr:octo/widgets#42@fedcba987654",
		Status:        review.StatusApproved,
	}
}

func TestFormatSummaryComment(t *testing.T) {
	body := FormatSummaryComment(approvedSummary(), "fedcba987654")
	if !strings.HasPrefix(body, SummaryMarker+"\n") {
		t.Errorf("body must start with marker:\n%s", body)
	}
	if !strings.Contains(body, "Reviewed head: `fedcba987654`") {
		t.Errorf("missing head line:\n%s", body)
	}
	if !strings.Contains(body, "# Review Summary") {
		t.Errorf("missing report:\n%s", body)
	}
}

func TestPostSummary_CreatesWhenAbsent(t *testing.T) {
	client := &fakeSummaryClient{
		comments: []IssueComment{{ID: 1, Body: "unrelated comment"}},
		nextID:   1,
	}

	res, err := PostSummary(context.Background(), client, "octo", "widgets", 42, "fedcba987654", approvedSummary())
	if err != nil {
		t.Fatalf("PostSummary error: %v", err)
	}
	if res.Mode != "created" {
		t.Errorf("mode = %q, want created", res.Mode)
	}
	if res.Deduped != 0 {
		t.Errorf("deduped = %d, want 0", res.Deduped)
	}

	var marked int
	for _, c := range client.comments {
		if strings.Contains(c.Body, SummaryMarker) {
			marked++
		}
	}
	if marked != 1 {
		t.Errorf("expected exactly one marker comment, got %d", marked)
	}
	if len(client.comments) != 2 {
		t.Errorf("unrelated comment must survive: %v", client.comments)
	}
}

func TestPostSummary_UpdatesExisting(t *testing.T) {
	client := &fakeSummaryClient{
		comments: []IssueComment{{ID: 5, Body: SummaryMarker + "\n\nold body"}},
		nextID:   5,
	}

	res, err := PostSummary(context.Background(), client, "octo", "widgets", 42, "fedcba987654", approvedSummary())
	if err != nil {
		t.Fatalf("PostSummary error: %v", err)
	}
	if res.Mode != "updated" {
		t.Errorf("mode = %q, want updated", res.Mode)
	}
	if res.CommentID != 5 {
		t.Errorf("comment_id = %d, want 5", res.CommentID)
	}
	if !strings.Contains(client.comments[0].Body, "- Status: Approved") {
		t.Errorf("body not replaced:\n%s", client.comments[0].Body)
	}
}

func TestPostSummary_DedupesToLatest(t *testing.T) {
	client := &fakeSummaryClient{
		comments: []IssueComment{
			{ID: 3, Body: SummaryMarker + " a"},
			{ID: 8, Body: SummaryMarker + " b"},
			{ID: 6, Body: SummaryMarker + " c"},
		},
		nextID: 8,
	}

	res, err := PostSummary(context.Background(), client, "octo", "widgets", 42, "fedcba987654", approvedSummary())
	if err != nil {
		t.Fatalf("PostSummary error: %v", err)
	}
	if res.Mode != "updated" {
		t.Errorf("mode = %q", res.Mode)
	}
	if res.CommentID != 8 {
		t.Errorf("comment_id = %d, want latest (8)", res.CommentID)
	}
	if res.Deduped != 2 {
		t.Errorf("deduped = %d, want 2", res.Deduped)
	}
	if len(client.comments) != 1 || client.comments[0].ID != 8 {
		t.Errorf("duplicates not removed: %v", client.comments)
	}
}

func TestPostSummary_ReconcilesConcurrentCreate(t *testing.T) {
	// Another run creates a marker comment with a higher ID between our
	// create and the follow-up list; the protocol converges on theirs.
	client := &racingSummaryClient{fakeSummaryClient: fakeSummaryClient{nextID: 10}}

	res, err := PostSummary(context.Background(), client, "octo", "widgets", 42, "fedcba987654", approvedSummary())
	if err != nil {
		t.Fatalf("PostSummary error: %v", err)
	}
	if res.Mode != "reconciled" {
		t.Errorf("mode = %q, want reconciled", res.Mode)
	}
	if res.CommentID != 100 {
		t.Errorf("comment_id = %d, want the racing comment's id", res.CommentID)
	}
}

// racingSummaryClient injects a competing marker comment right after the
// first create, mimicking a concurrent run.
type racingSummaryClient struct {
	fakeSummaryClient
	raced bool
}

func (r *racingSummaryClient) CreateIssueComment(ctx context.Context, owner, repo string, pr int, body string) (IssueComment, error) {
	c, err := r.fakeSummaryClient.CreateIssueComment(ctx, owner, repo, pr, body)
	if err != nil {
		return c, err
	}
	if !r.raced {
		r.raced = true
		r.comments = append(r.comments, IssueComment{ID: 100, Body: SummaryMarker + " racer"})
	}
	return c, err
}
