package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/reports"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"github.com/snap-point/moderation-api/utils"
	"go.uber.org/zap"
)

type ReportController struct {
	Intake *reports.Intake
	log    *zap.Logger
}

func NewReportController(in *reports.Intake, log *zap.Logger) *ReportController {
	return &ReportController{Intake: in, log: log.Named("http")}
}

// SubmitReport godoc
// @Summary Report a user or a piece of content
// @Description Returns the existing report when the same report was filed in the last 24 hours
// @Tags reports
// @Accept json
// @Produce json
// @Param report body reports.SubmitRequest true "Report"
// @Success 201 {object} StandardResponse
// @Success 200 {object} StandardResponse
// @Router /report [post]
func (rc *ReportController) SubmitReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req reports.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ReporterID = user.UserID
	if req.ReportedUserID != "" && req.ReportedUserID == user.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot report yourself"})
		return
	}

	report, created, err := rc.Intake.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, rc.log, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report, Message: "Report already submitted"})
		return
	}
	c.JSON(http.StatusCreated, StandardResponse{Success: true, Data: report, Message: "Report submitted successfully"})
}

func (rc *ReportController) ListReports(c *gin.Context) {
	page := utils.GetPage(c)
	items, total, err := rc.Intake.List(c.Request.Context(), store.ReportFilter{
		Status:     types.ReportStatus(c.Query("status")),
		ReportType: types.ReportType(c.Query("reportType")),
		Priority:   types.Priority(c.Query("priority")),
		Limit:      page.PageSize,
		Offset:     page.Offset(),
	})
	if err != nil {
		respondError(c, rc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: items, Pagination: newPagination(page, total)})
}

func (rc *ReportController) GetReport(c *gin.Context) {
	report, err := rc.Intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, rc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
}

func (rc *ReportController) ResolveReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req reports.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ResolverID = user.UserID

	report, err := rc.Intake.Resolve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, rc.log, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report, Message: "Report resolved"})
}
