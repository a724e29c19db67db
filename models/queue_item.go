package models

import (
	"time"

	"github.com/lib/pq"
)

// QueueItem is a unit of human review work. At most one row per
// (content_id, content_type) may be open; the partial unique index is
// created in config.InitDB.
type QueueItem struct {
	ID               string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ContentID        string         `gorm:"not null" json:"contentId"`
	ContentType      string         `gorm:"type:varchar(20);not null" json:"contentType"`
	UserID           string         `gorm:"not null;index" json:"userId"`
	Priority         string         `gorm:"type:varchar(10);not null;index" json:"priority"`
	Status           string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Flags            pq.StringArray `gorm:"type:text[]" json:"flags"`
	Reasons          pq.StringArray `gorm:"type:text[]" json:"reasons"`
	Severity         string         `gorm:"type:varchar(10);not null;index" json:"severity"`
	Confidence       float64        `json:"confidence"`
	AssignedTo       *string        `gorm:"index" json:"assignedTo,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	ReviewedAt       *time.Time     `json:"reviewedAt,omitempty"`
	ReviewedBy       *string        `json:"reviewedBy,omitempty"`
	ReviewNotes      string         `gorm:"type:text" json:"reviewNotes,omitempty"`
	EscalationReason string         `gorm:"type:text" json:"escalationReason,omitempty"`
}
