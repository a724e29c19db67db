package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/automod"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store    pinger
	registry *automod.Registry
	log      *zap.Logger
}

func NewHealthController(s pinger, r *automod.Registry, log *zap.Logger) *HealthController {
	return &HealthController{store: s, registry: r, log: log.Named("http")}
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	storage := "ok"
	if err := hc.store.Ping(ctx); err != nil {
		hc.log.Warn("storage health check failed", zap.Error(err))
		status, code = "degraded", http.StatusServiceUnavailable
		storage = "unreachable"
	}
	c.JSON(code, gin.H{
		"status":  status,
		"storage": storage,
		"rules":   hc.registry.Len(),
		"time":    time.Now().UTC(),
	})
}
