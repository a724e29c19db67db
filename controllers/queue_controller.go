package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"github.com/snap-point/moderation-api/utils"
	"go.uber.org/zap"
)

type QueueController struct {
	Queue *queue.Queue
	log   *zap.Logger
}

// AssignRequest assigns an item to ModeratorID, to the caller when it is
// empty, or to the least busy moderator when Auto is set.
type AssignRequest struct {
	ModeratorID string `json:"moderatorId"`
	Auto        bool   `json:"auto"`
}

func NewQueueController(q *queue.Queue, log *zap.Logger) *QueueController {
	return &QueueController{Queue: q, log: log.Named("http")}
}

// ListQueue godoc
// @Summary List review queue items
// @Tags queue
// @Produce json
// @Param status query string false "pending, in_review, approved, rejected, escalated"
// @Param priority query string false "low, medium, high, urgent"
// @Param severity query string false "low, medium, high, critical"
// @Param assignedTo query string false "Moderator ID"
// @Param page query integer false "Page number (default: 1)"
// @Param pageSize query integer false "Items per page (default: 20)"
// @Success 200 {object} StandardResponse
// @Router /queue [get]
func (qc *QueueController) ListQueue(c *gin.Context) {
	page := utils.GetPage(c)
	items, total, err := qc.Queue.List(c.Request.Context(), store.QueueFilter{
		Status:     types.QueueStatus(c.Query("status")),
		Priority:   types.Priority(c.Query("priority")),
		Severity:   types.Severity(c.Query("severity")),
		AssignedTo: c.Query("assignedTo"),
		Limit:      page.PageSize,
		Offset:     page.Offset(),
	})
	if err != nil {
		respondError(c, qc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: items, Pagination: newPagination(page, total)})
}

func (qc *QueueController) GetItem(c *gin.Context) {
	item, err := qc.Queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, qc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: item})
}

func (qc *QueueController) Assign(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req AssignRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		item *models.QueueItem
		err  error
	)
	switch {
	case req.Auto:
		item, err = qc.Queue.AutoAssign(c.Request.Context(), c.Param("id"))
	case req.ModeratorID != "":
		item, err = qc.Queue.Assign(c.Request.Context(), c.Param("id"), req.ModeratorID)
	default:
		item, err = qc.Queue.Assign(c.Request.Context(), c.Param("id"), user.UserID)
	}
	if err != nil {
		respondError(c, qc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: item, Message: "Item assigned"})
}

func (qc *QueueController) Review(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req queue.ReviewDecision
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ReviewerID = user.UserID

	item, err := qc.Queue.CompleteReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, qc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: item, Message: "Review completed"})
}
