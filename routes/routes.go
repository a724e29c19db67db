package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/snap-point/moderation-api/automod"
	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/controllers"
	"github.com/snap-point/moderation-api/middleware"
	"github.com/snap-point/moderation-api/moderation"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/reports"
	"github.com/snap-point/moderation-api/store"
	"go.uber.org/zap"
)

type Dependencies struct {
	Store        store.Store
	Orchestrator *moderation.Orchestrator
	Queue        *queue.Queue
	Reports      *reports.Intake
	Registry     *automod.Registry
	Images       *classifier.ImageClassifier
	JWTSecret    string
	Log          *zap.Logger
}

func SetupRoutes(r *gin.Engine, deps Dependencies) {
	// Initialize controllers
	moderationController := controllers.NewModerationController(deps.Orchestrator, deps.Images, deps.Log)
	reportController := controllers.NewReportController(deps.Reports, deps.Log)
	queueController := controllers.NewQueueController(deps.Queue, deps.Log)
	ruleController := controllers.NewRuleController(deps.Registry, deps.Log)
	healthController := controllers.NewHealthController(deps.Store, deps.Registry, deps.Log)

	// Public routes
	r.GET("/health", healthController.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		SetupModerationRoutes(protected, moderationController)
		SetupReportRoutes(protected, reportController)
		SetupQueueRoutes(protected, queueController)
		SetupRuleRoutes(protected, ruleController)
	}
}
