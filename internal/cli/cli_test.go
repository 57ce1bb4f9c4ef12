package cli

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/facetlabs/facet/internal/artifacts"
	"github.com/facetlabs/facet/internal/bundle"
	"github.com/facetlabs/facet/internal/review"
)

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagAspects = ""
	flagPreset = ""
	flagMaxLLMCalls = 0
	flagMaxWorkers = 0
	flagTimeout = 0
	flagContextLines = 0
	flagFormat = ""
	flagOut = ""
	flagPromptsDir = ""
	flagNoCache = false
	flagNoRedact = false
	flagMergeBase = false
	flagPostSummary = false
	flagPostInline = false
}

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	m, err := buildOverrides()
	if err != nil {
		t.Fatalf("buildOverrides() error = %v", err)
	}
	if len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_Flags(t *testing.T) {
	resetFlags()
	flagAspects = "security,correctness"
	flagMaxLLMCalls = 4
	flagTimeout = 60
	flagFormat = "json"
	flagNoCache = true
	flagNoRedact = true
	defer resetFlags()

	m, err := buildOverrides()
	if err != nil {
		t.Fatalf("buildOverrides() error = %v", err)
	}

	want := map[string]string{
		"aspects":               "security,correctness",
		"maxLLMCalls":           "4",
		"timeoutSeconds":        "60",
		"format":                "json",
		"cache.enabled":         "false",
		"privacy.redactSecrets": "false",
	}
	if len(m) != len(want) {
		t.Fatalf("buildOverrides() = %v, want %v", m, want)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("buildOverrides()[%q] = %q, want %q", k, m[k], v)
		}
	}
}

func TestBuildOverrides_Preset(t *testing.T) {
	resetFlags()
	flagPreset = "minimal"
	defer resetFlags()

	m, err := buildOverrides()
	if err != nil {
		t.Fatalf("buildOverrides() error = %v", err)
	}
	if got := m["aspects"]; got != "correctness,security" {
		t.Errorf("aspects = %q, want %q", got, "correctness,security")
	}
}

func TestBuildOverrides_PresetAndAspectsConflict(t *testing.T) {
	resetFlags()
	flagPreset = "standard"
	flagAspects = "security"
	defer resetFlags()

	if _, err := buildOverrides(); err == nil {
		t.Fatal("buildOverrides() with both --preset and --aspects should error")
	}
}

func TestBuildOverrides_UnknownPreset(t *testing.T) {
	resetFlags()
	flagPreset = "exhaustive"
	defer resetFlags()

	_, err := buildOverrides()
	if err == nil {
		t.Fatal("buildOverrides() with unknown preset should error")
	}
	if got := err.Error(); !strings.Contains(got, "available: full, minimal, standard") {
		t.Errorf("error = %q, want the available preset names", got)
	}
}

func TestParsePRRef(t *testing.T) {
	tests := []struct {
		ref       string
		owner     string
		repo      string
		number    int
		wantError bool
	}{
		{"octo/widgets#42", "octo", "widgets", 42, false},
		{"a/b#1", "a", "b", 1, false},
		{"octo/widgets", "", "", 0, true},
		{"octo#42", "", "", 0, true},
		{"octo/widgets#0", "", "", 0, true},
		{"octo/widgets#x", "", "", 0, true},
		{"/widgets#42", "", "", 0, true},
		{"", "", "", 0, true},
	}

	for _, tt := range tests {
		owner, repo, number, err := parsePRRef(tt.ref)
		if tt.wantError {
			if err == nil {
				t.Errorf("parsePRRef(%q) expected error, got %s/%s#%d", tt.ref, owner, repo, number)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePRRef(%q) unexpected error: %v", tt.ref, err)
			continue
		}
		if owner != tt.owner || repo != tt.repo || number != tt.number {
			t.Errorf("parsePRRef(%q) = %s/%s#%d, want %s/%s#%d",
				tt.ref, owner, repo, number, tt.owner, tt.repo, tt.number)
		}
	}
}

const policyBundle = `# SRC: foo.go
L1: package foo
L2: func Bar() {}
`

func TestApplyAspectPolicy(t *testing.T) {
	dir := t.TempDir()
	store, err := artifacts.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ar := review.AspectReview{
		SchemaVersion: review.SchemaVersion,
		ScopeID:       "local:abc123def456:0011223344ff",
		Status:        review.StatusBlocked,
		Findings: []review.Finding{
			{
				Title:    "verified stays blocking",
				Body:     "body",
				Priority: review.PriorityP1,
				CodeLocation: review.CodeLocation{
					RepoRelativePath: "foo.go",
					LineRange:        review.LineRange{Start: 1, End: 2},
				},
				Sources: []string{"foo.go#L1-L2"},
			},
			{
				Title:    "unverified gets downgraded",
				Body:     "body",
				Priority: review.PriorityP0,
				CodeLocation: review.CodeLocation{
					RepoRelativePath: "other.go",
					LineRange:        review.LineRange{Start: 5, End: 5},
				},
				Sources: []string{"other.go#L5"},
			},
			{
				Title:    "sourceless gets excluded",
				Body:     "body",
				Priority: review.PriorityP1,
				CodeLocation: review.CodeLocation{
					RepoRelativePath: "foo.go",
					LineRange:        review.LineRange{Start: 1, End: 1},
				},
			},
		},
	}
	if err := store.WriteJSON(store.AspectResultPath("correctness"), ar); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	idx := bundle.ParseIndex(policyBundle)
	evidence := evidenceSummary{PerAspect: make(map[string]review.PolicyStats)}

	got, err := applyAspectPolicy(store, "correctness", idx, &evidence)
	if err != nil {
		t.Fatalf("applyAspectPolicy: %v", err)
	}

	if len(got.Findings) != 2 {
		t.Fatalf("got %d findings, want 2 (sourceless excluded)", len(got.Findings))
	}
	if got.Findings[0].Priority != review.PriorityP1 {
		t.Errorf("verified finding priority = %s, want P1", got.Findings[0].Priority)
	}
	if got.Findings[0].Verified == nil || !*got.Findings[0].Verified {
		t.Error("verified finding should carry verified=true")
	}
	if got.Findings[1].Priority != review.PriorityP3 {
		t.Errorf("unverified finding priority = %s, want P3", got.Findings[1].Priority)
	}
	if got.Findings[1].OriginalPriority != review.PriorityP0 {
		t.Errorf("downgraded finding original priority = %s, want P0", got.Findings[1].OriginalPriority)
	}
	if got.Status != review.StatusBlocked {
		t.Errorf("recomputed status = %s, want Blocked (verified P1 survives)", got.Status)
	}

	stats := evidence.PerAspect["correctness"]
	if stats.TotalIn != 3 || stats.TotalOut != 2 {
		t.Errorf("stats in/out = %d/%d, want 3/2", stats.TotalIn, stats.TotalOut)
	}
	if stats.ExcludedCount != 1 || stats.DowngradedCount != 1 || stats.VerifiedCount != 1 {
		t.Errorf("stats excluded/downgraded/verified = %d/%d/%d, want 1/1/1",
			stats.ExcludedCount, stats.DowngradedCount, stats.VerifiedCount)
	}
	if evidence.Totals.TotalIn != 3 || evidence.Totals.ExcludedCount != 1 {
		t.Errorf("totals not accumulated: %+v", evidence.Totals)
	}

	// Raw review is preserved untouched next to the canonical result.
	rawData, err := os.ReadFile(store.AspectRawPath("correctness"))
	if err != nil {
		t.Fatalf("reading raw result: %v", err)
	}
	var raw review.AspectReview
	if err := json.Unmarshal(rawData, &raw); err != nil {
		t.Fatalf("decoding raw result: %v", err)
	}
	if len(raw.Findings) != 3 {
		t.Errorf("raw result has %d findings, want the pre-policy 3", len(raw.Findings))
	}

	// Canonical result is rewritten with post-policy findings.
	canonData, err := os.ReadFile(store.AspectResultPath("correctness"))
	if err != nil {
		t.Fatalf("reading canonical result: %v", err)
	}
	var canon review.AspectReview
	if err := json.Unmarshal(canonData, &canon); err != nil {
		t.Fatalf("decoding canonical result: %v", err)
	}
	if len(canon.Findings) != 2 {
		t.Errorf("canonical result has %d findings, want post-policy 2", len(canon.Findings))
	}
}

func TestApplyAspectPolicy_MissingResult(t *testing.T) {
	store, err := artifacts.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	evidence := evidenceSummary{PerAspect: make(map[string]review.PolicyStats)}
	if _, err := applyAspectPolicy(store, "security", bundle.Index{}, &evidence); err == nil {
		t.Fatal("expected error for missing aspect result")
	}
}
