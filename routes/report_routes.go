package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/controllers"
	"github.com/snap-point/moderation-api/middleware"
)

func SetupReportRoutes(protected *gin.RouterGroup, reportController *controllers.ReportController) {
	protected.POST("/report", reportController.SubmitReport)

	reports := protected.Group("/reports")
	reports.Use(middleware.RequireModerator())
	{
		reports.GET("", reportController.ListReports)
		reports.GET("/:id", reportController.GetReport)
		reports.PUT("/:id/resolve", reportController.ResolveReport)
	}
}
