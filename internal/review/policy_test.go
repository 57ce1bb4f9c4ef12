package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPolicy_VerifiedUnchanged(t *testing.T) {
	idx := indexOf(map[string][]int{"a.txt": {10}})
	f := finding("a.txt", 9, 11, "a.txt")
	f.Priority = PriorityP0

	out, stats := ApplyPolicy([]Finding{f}, idx)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityP0, out[0].Priority)
	assert.Equal(t, Priority(""), out[0].OriginalPriority)
	require.NotNil(t, out[0].Verified)
	assert.True(t, *out[0].Verified)
	assert.Equal(t, 1, stats.VerifiedCount)
	assert.Equal(t, 0, stats.DowngradedCount)
}

func TestApplyPolicy_MissingSourcesExcludesStrongFinding(t *testing.T) {
	idx := indexOf(map[string][]int{"a.txt": {10}})
	f := finding("a.txt", 9, 11) // no sources at all
	f.Priority = PriorityP0

	out, stats := ApplyPolicy([]Finding{f}, idx)

	assert.Empty(t, out)
	assert.Equal(t, 1, stats.ExcludedCount)
	assert.Equal(t, 1, stats.UnverifiedReasonCounts[ReasonMissingSources])
}

func TestApplyPolicy_OtherReasonsDowngradeToP3(t *testing.T) {
	idx := indexOf(map[string][]int{"a.txt": {10}})
	f := finding("a.txt", 9, 11, "nowhere.txt") // unresolved source
	f.Priority = PriorityP1

	out, stats := ApplyPolicy([]Finding{f}, idx)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityP3, out[0].Priority)
	assert.Equal(t, PriorityP1, out[0].OriginalPriority)
	require.NotNil(t, out[0].Verified)
	assert.False(t, *out[0].Verified)
	assert.Equal(t, 1, stats.DowngradedCount)
	assert.Equal(t, 0, stats.ExcludedCount)
}

func TestApplyPolicy_UnverifiedP3KeptAsIs(t *testing.T) {
	f := finding("a.txt", 1, 1)
	f.Priority = PriorityP3

	out, stats := ApplyPolicy([]Finding{f}, indexOf(nil))

	require.Len(t, out, 1)
	assert.Equal(t, PriorityP3, out[0].Priority)
	assert.Equal(t, Priority(""), out[0].OriginalPriority)
	assert.Equal(t, 0, stats.ExcludedCount)
	assert.Equal(t, 0, stats.DowngradedCount)
}

func TestApplyPolicy_NeverRaisesPriority(t *testing.T) {
	idx := indexOf(map[string][]int{"a.txt": {10}})
	in := []Finding{
		func() Finding { f := finding("a.txt", 9, 11, "a.txt"); f.Priority = PriorityP2; return f }(),
		func() Finding { f := finding("a.txt", 9, 11, "missing.txt"); f.Priority = PriorityP2; return f }(),
	}

	out, _ := ApplyPolicy(in, idx)

	for _, f := range out {
		assert.GreaterOrEqual(t, PriorityRank(f.Priority), PriorityRank(PriorityP2))
	}
}

func TestRecomputeStatus(t *testing.T) {
	p1 := Finding{Priority: PriorityP1}
	p3 := Finding{Priority: PriorityP3}

	tests := []struct {
		name      string
		findings  []Finding
		questions []string
		want      Status
	}{
		{"empty", nil, nil, StatusApproved},
		{"only weak findings", []Finding{p3}, nil, StatusApprovedNits},
		{"blocking finding", []Finding{p1}, nil, StatusBlocked},
		{"only questions", nil, []string{"q?"}, StatusQuestion},
		{"blocking wins over questions", []Finding{p1}, []string{"q?"}, StatusBlocked},
		{"questions win over weak findings", []Finding{p3}, []string{"q?"}, StatusQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecomputeStatus(tt.findings, tt.questions))
		})
	}
}
