package models

import (
	"time"
)

// ActivityLog records every side effect the pipeline applied to content or users.
type ActivityLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	UserID      string    `json:"userId" gorm:"index"`
	ContentID   string    `json:"contentId,omitempty"`
	ContentType string    `json:"contentType,omitempty" gorm:"type:varchar(20)"`
	Activity    string    `json:"activity" gorm:"not null;type:varchar(50)"` // "content_hidden", "user_suspended", etc.
	ActorID     string    `json:"actorId,omitempty"`                         // empty for automatic actions
	Details     string    `json:"details,omitempty" gorm:"type:text"`
}
