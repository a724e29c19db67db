package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AccountStatusActive    = "active"
	AccountStatusFlagged   = "flagged"
	AccountStatusSuspended = "suspended"
	AccountStatusBanned    = "banned"
)

type User struct {
	ID             string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Username       string         `gorm:"unique;not null" json:"username"`
	Bio            string         `json:"bio"`
	Avatar         string         `json:"avatar"`
	Posts          []Post         `json:"posts,omitempty" gorm:"foreignKey:UserID"`
	Comments       []Comment      `json:"comments,omitempty" gorm:"foreignKey:UserID"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	IsModerator    bool           `gorm:"default:false;index" json:"is_moderator"`
	IsAdmin        bool           `gorm:"default:false" json:"is_admin"`
	AccountStatus  string         `gorm:"type:varchar(20);default:'active'" json:"account_status"`
	ProfileHidden  bool           `gorm:"default:false" json:"profile_hidden"`
	FlagCount      int            `gorm:"default:0" json:"flag_count"`
	WarningCount   int            `gorm:"default:0" json:"warning_count"`
	SuspendedUntil *time.Time     `json:"suspended_until,omitempty"`
	BannedAt       *time.Time     `json:"banned_at,omitempty"`
}
