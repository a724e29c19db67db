// Package automod evaluates declarative moderation rules against content and
// a fresh snapshot of the author's behavior.
package automod

import (
	"time"

	"github.com/snap-point/moderation-api/types"
)

type RuleType string

const (
	RuleTypeContent  RuleType = "content"
	RuleTypeUser     RuleType = "user"
	RuleTypeBehavior RuleType = "behavior"
)

// Condition is a closed set of named predicates. Every implementation lives in
// this file and is handled by Engine.evaluate.
type Condition interface {
	// Name is the stable identifier shown to administrators.
	Name() string
	isCondition()
}

// ContainsSpamPatterns matches text with at least two spam indicators.
type ContainsSpamPatterns struct{}

// PostsPerHourAbove matches authors with more than Limit posts in the last hour.
type PostsPerHourAbove struct {
	Limit int
}

// NewAccountBurst matches accounts younger than MaxAge with more than MinPosts posts in the last day.
type NewAccountBurst struct {
	MaxAge   time.Duration
	MinPosts int
}

// ReportsAtLeast matches content reported Count or more times within Window.
type ReportsAtLeast struct {
	Count  int
	Window time.Duration
}

// ContainsSuspiciousLinks matches text linking to shorteners, raw IPs or
// throwaway domains.
type ContainsSuspiciousLinks struct{}

// DuplicateContent matches text that other users posted verbatim within
// Window. This is an exact match on normalized text, not a similarity score.
type DuplicateContent struct {
	Window time.Duration
}

func (ContainsSpamPatterns) Name() string    { return "contains_spam_patterns" }
func (PostsPerHourAbove) Name() string       { return "posts_per_hour" }
func (NewAccountBurst) Name() string         { return "new_account_burst" }
func (ReportsAtLeast) Name() string          { return "reports_count" }
func (ContainsSuspiciousLinks) Name() string { return "contains_suspicious_links" }
func (DuplicateContent) Name() string        { return "duplicate_content" }

func (ContainsSpamPatterns) isCondition()    {}
func (PostsPerHourAbove) isCondition()       {}
func (NewAccountBurst) isCondition()         {}
func (ReportsAtLeast) isCondition()          {}
func (ContainsSuspiciousLinks) isCondition() {}
func (DuplicateContent) isCondition()        {}

// Rule is immutable catalog data. Whether it is active lives in the Registry.
type Rule struct {
	ID        string
	Name      string
	Type      RuleType
	Condition Condition
	Action    string
	Severity  types.Severity
}

// Blocking reports whether the rule's action takes content down, which makes
// a triggered rule veto approval.
func (r Rule) Blocking() bool {
	return r.Action == types.ActionHideContent || r.Action == types.ActionTemporaryBan
}

func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "spam_content",
			Name:      "Spam content",
			Type:      RuleTypeContent,
			Condition: ContainsSpamPatterns{},
			Action:    types.ActionHideContent,
			Severity:  types.SeverityMedium,
		},
		{
			ID:        "rapid_posting",
			Name:      "Rapid posting",
			Type:      RuleTypeBehavior,
			Condition: PostsPerHourAbove{Limit: 10},
			Action:    types.ActionSendWarning,
			Severity:  types.SeverityMedium,
		},
		{
			ID:        "new_account_spam",
			Name:      "New account posting burst",
			Type:      RuleTypeUser,
			Condition: NewAccountBurst{MaxAge: 24 * time.Hour, MinPosts: 5},
			Action:    types.ActionFlagUser,
			Severity:  types.SeverityHigh,
		},
		{
			ID:        "multiple_reports",
			Name:      "Multiple reports",
			Type:      RuleTypeContent,
			Condition: ReportsAtLeast{Count: 3, Window: 24 * time.Hour},
			Action:    types.ActionHideContent,
			Severity:  types.SeverityHigh,
		},
		{
			ID:        "suspicious_links",
			Name:      "Suspicious links",
			Type:      RuleTypeContent,
			Condition: ContainsSuspiciousLinks{},
			Action:    types.ActionRequireReview,
			Severity:  types.SeverityMedium,
		},
		{
			ID:        "duplicate_content",
			Name:      "Duplicate content",
			Type:      RuleTypeContent,
			Condition: DuplicateContent{Window: types.DUPLICATE_WINDOW},
			Action:    types.ActionRequireReview,
			Severity:  types.SeverityMedium,
		},
	}
}

// RuleView is the administrative projection of a rule and its status.
type RuleView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       RuleType       `json:"type"`
	Condition  string         `json:"condition"`
	Threshold  *float64       `json:"threshold,omitempty"`
	TimeWindow string         `json:"timeWindow,omitempty"`
	Action     string         `json:"action"`
	Severity   types.Severity `json:"severity"`
	IsActive   bool           `json:"isActive"`
}

func (r Rule) View(active bool) RuleView {
	v := RuleView{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Condition: r.Condition.Name(),
		Action:    r.Action,
		Severity:  r.Severity,
		IsActive:  active,
	}
	threshold := func(n int) *float64 {
		f := float64(n)
		return &f
	}
	switch c := r.Condition.(type) {
	case PostsPerHourAbove:
		v.Threshold = threshold(c.Limit)
		v.TimeWindow = time.Hour.String()
	case NewAccountBurst:
		v.Threshold = threshold(c.MinPosts)
		v.TimeWindow = c.MaxAge.String()
	case ReportsAtLeast:
		v.Threshold = threshold(c.Count)
		v.TimeWindow = c.Window.String()
	case DuplicateContent:
		v.TimeWindow = c.Window.String()
	}
	return v
}
