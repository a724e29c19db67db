package types

import (
	"math"
	"sort"
	"time"
)

// ContentToModerate is the immutable pipeline input.
type ContentToModerate struct {
	ID        string         `json:"id" binding:"required"`
	Type      ContentType    `json:"type" binding:"required"`
	UserID    string         `json:"userId" binding:"required"`
	Content   string         `json:"content"`
	ImageURLs []string       `json:"imageUrls"`
	Metadata  map[string]any `json:"metadata"`
}

// ModerationResult is the merged outcome of one moderation run.
//
// Flags, Reasons and AutoActions have set semantics; they are kept sorted and
// free of duplicates.
type ModerationResult struct {
	IsApproved          bool           `json:"isApproved"`
	Confidence          float64        `json:"confidence"`
	Flags               []string       `json:"flags"`
	Reasons             []string       `json:"reasons"`
	Severity            Severity       `json:"severity"`
	RequiresHumanReview bool           `json:"requiresHumanReview"`
	AutoActions         []string       `json:"autoActions"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// IdentityResult is the neutral element of Merge.
func IdentityResult() ModerationResult {
	return ModerationResult{
		IsApproved:  true,
		Confidence:  1.0,
		Severity:    SeverityLow,
		Flags:       []string{},
		Reasons:     []string{},
		AutoActions: []string{},
		Metadata:    map[string]any{},
	}
}

// FailClosed is the outcome used when a component or the whole pipeline breaks.
func FailClosed(flag, reason string) ModerationResult {
	r := IdentityResult()
	r.IsApproved = false
	r.Confidence = 0
	r.Severity = SeverityHigh
	r.RequiresHumanReview = true
	r.Flags = []string{flag}
	r.Reasons = []string{reason}
	return r
}

// Signal is a partial opinion from a single component. A nil Approved or
// Confidence means the component abstains on that dimension.
type Signal struct {
	Source              string
	Approved            *bool
	Confidence          *float64
	Severity            Severity
	Flags               []string
	Reasons             []string
	AutoActions         []string
	RequiresHumanReview bool
	Metadata            map[string]any
}

// Signal converts a complete result into a signal that expresses every opinion.
func (r ModerationResult) Signal(source string) Signal {
	approved := r.IsApproved
	confidence := r.Confidence
	return Signal{
		Source:              source,
		Approved:            &approved,
		Confidence:          &confidence,
		Severity:            r.Severity,
		Flags:               r.Flags,
		Reasons:             r.Reasons,
		AutoActions:         r.AutoActions,
		RequiresHumanReview: r.RequiresHumanReview,
		Metadata:            r.Metadata,
	}
}

// Merge folds a signal into r and returns the new result; r is not modified.
//
// Approval is vetoed only by an explicit false, confidence takes the minimum,
// severity takes the maximum, set fields are unioned and review is OR'd.
func Merge(r ModerationResult, s Signal) ModerationResult {
	out := ModerationResult{
		IsApproved:          r.IsApproved,
		Confidence:          r.Confidence,
		Severity:            MaxSeverity(r.Severity, s.Severity),
		Flags:               UnionStrings(r.Flags, s.Flags),
		Reasons:             UnionStrings(r.Reasons, s.Reasons),
		AutoActions:         UnionStrings(r.AutoActions, s.AutoActions),
		RequiresHumanReview: r.RequiresHumanReview || s.RequiresHumanReview,
		Metadata:            make(map[string]any, len(r.Metadata)+1),
	}
	if s.Approved != nil && !*s.Approved {
		out.IsApproved = false
	}
	if s.Confidence != nil {
		out.Confidence = math.Min(out.Confidence, *s.Confidence)
	}
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	if s.Source != "" && len(s.Metadata) > 0 {
		out.Metadata[s.Source] = s.Metadata
	}
	return out
}

// Combine merges two complete results.
func Combine(a, b ModerationResult) ModerationResult {
	return Merge(a, b.Signal(""))
}

// UnionStrings returns the sorted set union of the inputs.
func UnionStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, v := range l {
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func HasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// UserBehaviorMetrics is a fresh per-run snapshot of a user's recent activity.
type UserBehaviorMetrics struct {
	UserID             string        `json:"userId"`
	PostsLastHour      int           `json:"postsLastHour"`
	PostsLastDay       int           `json:"postsLastDay"`
	CommentsLastDay    int           `json:"commentsLastDay"`
	ReportsReceived    int           `json:"reportsReceived"`
	AccountAge         time.Duration `json:"accountAge"`
	FollowerCount      int           `json:"followerCount"`
	EngagementRate     float64       `json:"engagementRate"`
	SuspiciousActivity bool          `json:"suspiciousActivity"`
}
