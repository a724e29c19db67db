package moderation

import (
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
)

// Combine folds results left to right starting from the identity result.
func Combine(results ...types.ModerationResult) types.ModerationResult {
	out := types.IdentityResult()
	for _, r := range results {
		out = types.Combine(out, r)
	}
	return out
}

// ApplyFinalDecision enforces the severity and confidence floors on a merged
// result:
//
//	critical                   -> reject, review
//	high with confidence < 0.7 -> reject, review
//	medium with confidence < 0.8 -> review
func ApplyFinalDecision(r types.ModerationResult) types.ModerationResult {
	switch {
	case r.Severity == types.SeverityCritical:
		r.IsApproved = false
		r.RequiresHumanReview = true
	case r.Severity == types.SeverityHigh && r.Confidence < 0.7:
		r.IsApproved = false
		r.RequiresHumanReview = true
	case r.Severity == types.SeverityMedium && r.Confidence < 0.8:
		r.RequiresHumanReview = true
	}
	return r
}

// UserRiskScore weighs a user's recent rejection and severe-violation rates.
// Users without history get a small baseline score.
func UserRiskScore(h store.UserHistory) float64 {
	if h.Total <= 0 {
		return types.NEW_USER_RISK_SCORE
	}
	total := float64(h.Total)
	score := types.USER_RISK_REJECT_RATE*float64(h.Rejected)/total +
		types.USER_RISK_SEVERE_RATE*float64(h.Severe)/total
	if score > 1 {
		return 1
	}
	return score
}

// applyUserRisk forces review for high-risk users regardless of other signals.
func applyUserRisk(r types.ModerationResult, risk float64) types.ModerationResult {
	r.Metadata = copyMetadata(r.Metadata)
	r.Metadata["userRiskScore"] = risk
	if risk > types.HIGH_USER_RISK_SCORE {
		r.RequiresHumanReview = true
		r.Reasons = types.UnionStrings(r.Reasons, []string{"User has a high risk history"})
	}
	return r
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
