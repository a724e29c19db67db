package utils

import (
	"github.com/gin-gonic/gin"
)

type UserClaims struct {
	UserID      string `json:"user_id"`
	IsModerator bool   `json:"is_moderator"`
	IsAdmin     bool   `json:"is_admin"`
	IsService   bool   `json:"is_service"`
}

// CanModerate reports whether the caller may act on the review queue and reports.
func (u *UserClaims) CanModerate() bool {
	return u != nil && (u.IsModerator || u.IsAdmin)
}

// CanSubmitFor reports whether the caller may submit content owned by userID
// for moderation. Upstream services and moderators may submit for anyone.
func (u *UserClaims) CanSubmitFor(userID string) bool {
	if u == nil {
		return false
	}
	return u.UserID == userID || u.IsService || u.CanModerate()
}

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(c *gin.Context) *UserClaims {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	if userClaims, ok := user.(*UserClaims); ok {
		return userClaims
	}
	return nil
}
