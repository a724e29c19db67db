package models

import (
	"time"

	"github.com/lib/pq"
)

type UserReport struct {
	ID             string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ReporterID     string         `gorm:"not null;index:idx_report_dedup" json:"reporter_id"`
	ReportedUserID *string        `gorm:"index" json:"reported_user_id,omitempty"`
	ContentID      *string        `gorm:"index:idx_report_content" json:"content_id,omitempty"`
	ContentType    *string        `gorm:"type:varchar(20);index:idx_report_content" json:"content_type,omitempty"`
	ReportType     string         `gorm:"type:varchar(32);not null;index:idx_report_dedup" json:"report_type"`
	Reason         string         `gorm:"type:text;not null" json:"reason"`
	Evidence       pq.StringArray `gorm:"type:text[]" json:"evidence"`
	Priority       string         `gorm:"type:varchar(10);not null" json:"priority"`
	Status         string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"` // pending, investigating, resolved, dismissed
	ResolvedBy     *string        `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Resolution     string         `gorm:"type:text" json:"resolution,omitempty"`
	ActionTaken    string         `gorm:"type:varchar(32)" json:"action_taken,omitempty"`
}
