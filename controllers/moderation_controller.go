package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/moderation"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

const maxBulkItems = 100

type ModerationController struct {
	Orchestrator *moderation.Orchestrator
	Images       *classifier.ImageClassifier
	log          *zap.Logger
}

type BulkModerateRequest struct {
	Items []types.ContentToModerate `json:"items" binding:"required,min=1"`
}

type ImageBulkRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

func NewModerationController(o *moderation.Orchestrator, images *classifier.ImageClassifier, log *zap.Logger) *ModerationController {
	return &ModerationController{Orchestrator: o, Images: images, log: log.Named("http")}
}

// Moderate godoc
// @Summary Moderate a piece of content
// @Tags moderation
// @Accept json
// @Produce json
// @Param content body types.ContentToModerate true "Content to moderate"
// @Success 200 {object} StandardResponse
// @Router /moderate [post]
func (mc *ModerationController) Moderate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.ContentToModerate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !user.CanSubmitFor(req.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot submit another user's content for moderation"})
		return
	}

	res, err := mc.Orchestrator.Moderate(c.Request.Context(), req)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: res})
}

// ModerateBulk godoc
// @Summary Moderate up to 100 items in batches
// @Tags moderation
// @Accept json
// @Produce json
// @Param items body BulkModerateRequest true "Items"
// @Success 200 {object} StandardResponse
// @Router /moderate/bulk [post]
func (mc *ModerationController) ModerateBulk(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req BulkModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Items) > maxBulkItems {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At most 100 items can be moderated at once"})
		return
	}
	for i, item := range req.Items {
		if !user.CanSubmitFor(item.UserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("Item %d belongs to another user", i)})
			return
		}
	}

	results := mc.Orchestrator.ModerateBulk(c.Request.Context(), req.Items)
	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    results,
		Meta:    gin.H{"total": len(results), "failed": failed},
	})
}

// ModerateImages classifies a list of image URLs without persisting anything.
func (mc *ModerationController) ModerateImages(c *gin.Context) {
	var req ImageBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.URLs) > maxBulkItems {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At most 100 images can be classified at once"})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: mc.Images.AnalyzeBulk(c.Request.Context(), req.URLs)})
}

func (mc *ModerationController) Status(c *gin.Context) {
	view, err := mc.Orchestrator.Status(c.Request.Context(), c.Param("contentId"), types.ContentType(c.Param("contentType")))
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: view})
}

func (mc *ModerationController) Appeal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req moderation.AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.UserID = user.UserID

	appeal, item, err := mc.Orchestrator.Appeal(c.Request.Context(), req)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Data:    gin.H{"appeal": appeal, "queueItem": item},
		Message: "Appeal submitted successfully",
	})
}

func (mc *ModerationController) Statistics(c *gin.Context) {
	stats, err := mc.Orchestrator.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: stats})
}
