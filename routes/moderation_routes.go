package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/controllers"
)

func SetupModerationRoutes(protected *gin.RouterGroup, moderationController *controllers.ModerationController) {
	protected.POST("/moderate", moderationController.Moderate)
	protected.POST("/moderate/bulk", moderationController.ModerateBulk)
	protected.POST("/moderate/images", moderationController.ModerateImages)
	protected.GET("/status/:contentId/:contentType", moderationController.Status)
	protected.POST("/appeal", moderationController.Appeal)
	protected.GET("/statistics", moderationController.Statistics)
}
