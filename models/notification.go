package models

import (
	"time"
)

type Notification struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"not null;index" json:"userId"`
	Type      string    `gorm:"type:varchar(50);not null" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Priority  string    `gorm:"type:varchar(10)" json:"priority"`
	Data      string    `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool      `gorm:"default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// RuleState persists administrative activate/deactivate toggles of automod rules.
type RuleState struct {
	RuleID    string    `gorm:"primaryKey;type:varchar(64)" json:"ruleId"`
	IsActive  bool      `json:"isActive"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}
