package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/controllers"
	"github.com/snap-point/moderation-api/middleware"
)

func SetupQueueRoutes(protected *gin.RouterGroup, queueController *controllers.QueueController) {
	queue := protected.Group("/queue")
	queue.Use(middleware.RequireModerator())
	{
		queue.GET("", queueController.ListQueue)
		queue.GET("/:id", queueController.GetItem)
		queue.PUT("/:id/assign", queueController.Assign)
		queue.PUT("/:id/review", queueController.Review)
	}
}
