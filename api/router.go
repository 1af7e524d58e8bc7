// Package api exposes the extraction pool over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/postwatch/api/handler"
	"github.com/use-agent/postwatch/api/middleware"
	"github.com/use-agent/postwatch/cache"
	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/webhook"
)

// Deps are the collaborators the routes serve.
type Deps struct {
	Pool       handler.Pool
	Extractors handler.Extractors
	Cache      *cache.Cache
	Notifier   *webhook.Notifier
	StartTime  time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background batch work.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoints stay outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.CustomRecovery(recovered))
	r.Use(gin.Logger())

	x := &handler.Extraction{
		Pool:       d.Pool,
		Extractors: d.Extractors,
		Cache:      d.Cache,
		Headless:   cfg.Browser.Headless,
	}
	batches := handler.NewBatches(ctx, x, d.Notifier, cfg.Pool.MaxConcurrency, cfg.Batch.Expiry)

	guard := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		guard = append(guard, middleware.Auth(cfg.Auth.APIKeys))
	}
	guard = append(guard, middleware.RateLimit(cfg.RateLimit))

	// Original endpoints.
	r.GET("/health", handler.LegacyHealth(d.Pool))
	legacy := r.Group("", guard...)
	for _, name := range []string{"xhs", "douyin", "toutiao"} {
		legacy.POST("/"+name, x.Legacy(name))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Pool, d.StartTime))

	protected := v1.Group("", guard...)
	protected.POST("/extract/:platform", x.Extract())
	protected.GET("/pool", handler.PoolStats(d.Pool))
	protected.POST("/batch", batches.Post())
	protected.GET("/batch/:id", batches.Get())

	return r
}

// recovered is the only place a 500 envelope is produced.
func recovered(c *gin.Context, err any) {
	slog.Error("handler panic", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, envelope.Internal("", ""))
}
