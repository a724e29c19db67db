package models

import (
	"time"
)

type Follow struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time
	FollowerUserID  string `gorm:"not null;index"`
	FollowingUserID string `gorm:"not null;index"`
	Status          string `gorm:"not null;default:'accepted'"` // pending, accepted, blocked
}
