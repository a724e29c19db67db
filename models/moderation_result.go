package models

import (
	"time"

	"github.com/lib/pq"
)

// ModerationRecord is the append-only audit row of one moderation run.
type ModerationRecord struct {
	ID                  string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ContentID           string         `gorm:"not null;index:idx_moderation_content" json:"contentId"`
	ContentType         string         `gorm:"type:varchar(20);not null;index:idx_moderation_content" json:"contentType"`
	UserID              string         `gorm:"not null;index" json:"userId"`
	ContentHash         string         `gorm:"type:varchar(64);index" json:"-"`
	IsApproved          bool           `json:"isApproved"`
	Confidence          float64        `json:"confidence"`
	Severity            string         `gorm:"type:varchar(10);not null" json:"severity"`
	Flags               pq.StringArray `gorm:"type:text[]" json:"flags"`
	Reasons             pq.StringArray `gorm:"type:text[]" json:"reasons"`
	AutoActions         pq.StringArray `gorm:"type:text[]" json:"autoActions"`
	RequiresHumanReview bool           `json:"requiresHumanReview"`
	Metadata            string         `gorm:"type:jsonb" json:"metadata"`
	CreatedAt           time.Time      `gorm:"index" json:"createdAt"`
}

type Appeal struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ContentID   string    `gorm:"not null;index" json:"contentId"`
	ContentType string    `gorm:"type:varchar(20);not null" json:"contentType"`
	UserID      string    `gorm:"not null;index" json:"userId"`
	Reason      string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt   time.Time `json:"createdAt"`
}
