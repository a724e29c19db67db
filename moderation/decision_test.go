package moderation

import (
	"testing"

	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
)

var severities = []types.Severity{types.SeverityLow, types.SeverityMedium, types.SeverityHigh, types.SeverityCritical}

func result(sev types.Severity, conf float64, approved bool, flags ...string) types.ModerationResult {
	r := types.IdentityResult()
	r.Severity = sev
	r.Confidence = conf
	r.IsApproved = approved
	r.Flags = types.UnionStrings(flags)
	return r
}

func TestCombineSeverityIsMax(t *testing.T) {
	for _, a := range severities {
		for _, b := range severities {
			got := Combine(result(a, 1, true), result(b, 1, true))
			assert.Equal(t, types.MaxSeverity(a, b), got.Severity, "%s+%s", a, b)
			assert.Equal(t, max(a.Rank(), b.Rank()), got.Severity.Rank())
		}
	}
}

func TestCombineConfidenceIsMin(t *testing.T) {
	confs := []float64{0, 0.3, 0.5, 0.9, 1}
	for _, a := range confs {
		for _, b := range confs {
			got := Combine(result(types.SeverityLow, a, true), result(types.SeverityLow, b, true))
			assert.Equal(t, min(a, b), got.Confidence)
		}
	}
}

func TestCombineIsAssociativeAndCommutative(t *testing.T) {
	samples := []types.ModerationResult{
		result(types.SeverityLow, 0.9, true, "a"),
		result(types.SeverityHigh, 0.7, false, "b"),
		result(types.SeverityMedium, 0.5, true, "a", "c"),
		result(types.SeverityCritical, 0.95, false),
	}
	for _, x := range samples {
		for _, y := range samples {
			xy, yx := Combine(x, y), Combine(y, x)
			assert.Equal(t, xy.Severity, yx.Severity)
			assert.Equal(t, xy.Confidence, yx.Confidence)
			assert.Equal(t, xy.IsApproved, yx.IsApproved)
			assert.Equal(t, xy.Flags, yx.Flags)

			for _, z := range samples {
				left := Combine(Combine(x, y), z)
				right := Combine(x, Combine(y, z))
				assert.Equal(t, left.Severity, right.Severity)
				assert.Equal(t, left.Confidence, right.Confidence)
				assert.Equal(t, left.IsApproved, right.IsApproved)
			}
		}
	}
}

func TestCombineApprovalVetoedOnlyByFalse(t *testing.T) {
	assert.True(t, Combine(result(types.SeverityLow, 1, true), result(types.SeverityLow, 1, true)).IsApproved)
	assert.False(t, Combine(result(types.SeverityLow, 1, true), result(types.SeverityLow, 1, false)).IsApproved)

	// an abstaining signal does not veto
	r := types.Merge(types.IdentityResult(), types.Signal{Source: "rules", Flags: []string{"x"}})
	assert.True(t, r.IsApproved)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, []string{"x"}, r.Flags)
}

func TestCombineEmptyIsIdentity(t *testing.T) {
	r := Combine()
	assert.True(t, r.IsApproved)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, types.SeverityLow, r.Severity)
	assert.False(t, r.RequiresHumanReview)
}

func TestApplyFinalDecision(t *testing.T) {
	tests := []struct {
		name     string
		in       types.ModerationResult
		approved bool
		review   bool
	}{
		{"critical full confidence", result(types.SeverityCritical, 1, true), false, true},
		{"critical zero confidence", result(types.SeverityCritical, 0, true), false, true},
		{"high low confidence", result(types.SeverityHigh, 0.69, true), false, true},
		{"high confident", result(types.SeverityHigh, 0.7, true), true, false},
		{"medium low confidence", result(types.SeverityMedium, 0.79, true), true, true},
		{"medium confident", result(types.SeverityMedium, 0.8, true), true, false},
		{"low anything", result(types.SeverityLow, 0.1, true), true, false},
		{"already rejected stays rejected", result(types.SeverityLow, 0.9, false), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFinalDecision(tt.in)
			assert.Equal(t, tt.approved, got.IsApproved)
			assert.Equal(t, tt.review, got.RequiresHumanReview)
		})
	}
}

func TestApplyFinalDecisionKeepsExistingReview(t *testing.T) {
	r := result(types.SeverityLow, 1, true)
	r.RequiresHumanReview = true
	assert.True(t, ApplyFinalDecision(r).RequiresHumanReview)
}

func TestUserRiskScore(t *testing.T) {
	assert.Equal(t, types.NEW_USER_RISK_SCORE, UserRiskScore(store.UserHistory{}))
	assert.InDelta(t, 1.0, UserRiskScore(store.UserHistory{Total: 4, Rejected: 4, Severe: 4}), 1e-9)
	assert.InDelta(t, 0.3, UserRiskScore(store.UserHistory{Total: 10, Rejected: 5}), 1e-9)
	assert.InDelta(t, 0.2, UserRiskScore(store.UserHistory{Total: 10, Severe: 5}), 1e-9)
	assert.InDelta(t, 0.0, UserRiskScore(store.UserHistory{Total: 10}), 1e-9)
}

func TestApplyUserRisk(t *testing.T) {
	r := applyUserRisk(types.IdentityResult(), 0.71)
	assert.True(t, r.RequiresHumanReview)
	assert.Equal(t, 0.71, r.Metadata["userRiskScore"])

	r = applyUserRisk(types.IdentityResult(), 0.7)
	assert.False(t, r.RequiresHumanReview)
}
