package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the ordered risk tier: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the position of s in the lattice. The zero value ranks below low.
func (s Severity) Rank() int {
	r, ok := severityRank[s]
	if !ok {
		return -1
	}
	return r
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// MaxSeverity is the lattice join.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	if a == "" {
		return SeverityLow
	}
	return a
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: unknown severity %q", ErrValidation, s)
	}
	return sev, nil
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Priority orders queue items and reports.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Broadcast reports whether new work at this priority is announced to every moderator.
func (p Priority) Broadcast() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// PriorityForSeverity maps an automated outcome onto a queue priority.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityUrgent
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeImage   ContentType = "image"
	ContentTypeProfile ContentType = "profile"
	ContentTypeMessage ContentType = "message"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypePost, ContentTypeComment, ContentTypeImage, ContentTypeProfile, ContentTypeMessage:
		return true
	}
	return false
}

// QueueStatus is the review queue state machine: pending -> in_review -> {approved, rejected, escalated}.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusInReview  QueueStatus = "in_review"
	QueueStatusApproved  QueueStatus = "approved"
	QueueStatusRejected  QueueStatus = "rejected"
	QueueStatusEscalated QueueStatus = "escalated"
)

// OpenQueueStatuses are the only states in which an item counts against the per-content dedup.
var OpenQueueStatuses = []QueueStatus{QueueStatusPending, QueueStatusInReview}

func (s QueueStatus) Open() bool {
	return s == QueueStatusPending || s == QueueStatusInReview
}

// Terminal reports whether s is a valid review outcome.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusApproved || s == QueueStatusRejected || s == QueueStatusEscalated
}

type ReportType string

const (
	ReportSpam                 ReportType = "spam"
	ReportHarassment           ReportType = "harassment"
	ReportHateSpeech           ReportType = "hate_speech"
	ReportViolence             ReportType = "violence"
	ReportInappropriateContent ReportType = "inappropriate_content"
	ReportFakeAccount          ReportType = "fake_account"
	ReportCopyright            ReportType = "copyright"
	ReportOther                ReportType = "other"
)

func (r ReportType) Valid() bool {
	switch r {
	case ReportSpam, ReportHarassment, ReportHateSpeech, ReportViolence,
		ReportInappropriateContent, ReportFakeAccount, ReportCopyright, ReportOther:
		return true
	}
	return false
}

// ReportPriority is the fixed report-type to priority mapping.
func ReportPriority(r ReportType) Priority {
	switch r {
	case ReportViolence, ReportHateSpeech:
		return PriorityUrgent
	case ReportHarassment, ReportInappropriateContent:
		return PriorityHigh
	case ReportSpam, ReportFakeAccount:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// AutoEscalates reports whether a new report of this type skips straight to investigating.
func (r ReportType) AutoEscalates() bool {
	return r == ReportViolence || r == ReportHateSpeech
}

type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusResolved      ReportStatus = "resolved"
	ReportStatusDismissed     ReportStatus = "dismissed"
)

func (s ReportStatus) Open() bool {
	return s == ReportStatusPending || s == ReportStatusInvestigating
}

// ResolutionAction is an optional side effect of resolving a report.
type ResolutionAction string

const (
	ResolutionNone          ResolutionAction = ""
	ResolutionWarnUser      ResolutionAction = "warn_user"
	ResolutionSuspendUser   ResolutionAction = "suspend_user"
	ResolutionBanUser       ResolutionAction = "ban_user"
	ResolutionRemoveContent ResolutionAction = "remove_content"
)

func (a ResolutionAction) Valid() bool {
	switch a {
	case ResolutionNone, ResolutionWarnUser, ResolutionSuspendUser, ResolutionBanUser, ResolutionRemoveContent:
		return true
	}
	return false
}

// Auto-actions produced by classifiers and rules and executed by the orchestrator.
const (
	ActionHideContent   = "hide_content"
	ActionFlagUser      = "flag_user"
	ActionSendWarning   = "send_warning"
	ActionTemporaryBan  = "temporary_ban"
	ActionRequireReview = "require_review"
)
