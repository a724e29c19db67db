package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/controllers"
	"github.com/snap-point/moderation-api/middleware"
)

func SetupRuleRoutes(protected *gin.RouterGroup, ruleController *controllers.RuleController) {
	rules := protected.Group("/rules")
	{
		rules.GET("", middleware.RequireModerator(), ruleController.ListRules)
		rules.PUT("/:id", middleware.RequireAdmin(), ruleController.ToggleRule)
	}
}
