package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/automod"
	"go.uber.org/zap"
)

type RuleController struct {
	Registry *automod.Registry
	log      *zap.Logger
}

type ToggleRuleRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func NewRuleController(r *automod.Registry, log *zap.Logger) *RuleController {
	return &RuleController{Registry: r, log: log.Named("http")}
}

func (rc *RuleController) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: rc.Registry.List()})
}

// ToggleRule godoc
// @Summary Activate or deactivate an auto-moderation rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param body body ToggleRuleRequest true "New status"
// @Success 200 {object} StandardResponse
// @Router /rules/{id} [put]
func (rc *RuleController) ToggleRule(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ToggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := rc.Registry.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive, user.UserID)
	if err != nil {
		respondError(c, rc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: view})
}
