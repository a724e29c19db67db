package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	ContentStatusPending  = "pending"
	ContentStatusApproved = "approved"
	ContentStatusHidden   = "hidden"
	ContentStatusRemoved  = "removed"
)

// Moderatable is embedded by every table the content store can mutate.
type Moderatable struct {
	IsHidden         bool   `json:"isHidden" gorm:"default:false;index"`
	IsApproved       bool   `json:"isApproved" gorm:"default:false"`
	ModerationStatus string `json:"moderationStatus" gorm:"type:varchar(20);default:'pending'"`
}

type Post struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Content   string         `json:"content" gorm:"type:text"`
	MediaURL  pq.StringArray `json:"mediaUrl" gorm:"type:text[]"`
	Hashtags  pq.StringArray `json:"hashtags" gorm:"type:text[]"`
	UserID    string         `json:"userId" gorm:"not null;index"`
	User      User           `json:"-" gorm:"foreignKey:UserID"`
	Comments  []Comment      `json:"comments,omitempty" gorm:"foreignKey:PostID"`
	Likes     []Like         `json:"likes,omitempty" gorm:"foreignKey:PostID"`
	IsPublic  bool           `json:"isPublic" gorm:"default:true"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Moderatable
}
