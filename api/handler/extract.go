package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/postwatch/cache"
	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/platform"
)

// Pool runs one extraction on a pooled identity. *engine.Pool satisfies it.
type Pool interface {
	AcquireAndRun(ctx context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope
	Stats() models.PoolStats
}

// Extractors resolves a platform key. *platform.Registry satisfies it.
type Extractors interface {
	Get(name string) (platform.Extractor, bool)
}

// Extraction serves the single-post endpoints.
type Extraction struct {
	Pool       Pool
	Extractors Extractors

	// Cache is optional.
	Cache *cache.Cache

	// Headless applies when a request leaves headless unset.
	Headless bool
}

// Extract returns a handler for POST /api/v1/extract/:platform.
//
// The HTTP status is 200 whenever an extraction ran; the envelope code
// carries the outcome.
func (x *Extraction) Extract() gin.HandlerFunc {
	return func(c *gin.Context) {
		ex, ok := x.Extractors.Get(c.Param("platform"))
		if !ok {
			c.JSON(http.StatusOK, envelope.Unsupported(""))
			return
		}

		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Debug("invalid extract request", "platform", ex.Name(), "error", err)
			c.JSON(http.StatusBadRequest, envelope.Invalid(ex.WebName()))
			return
		}
		req.Defaults(x.Headless)

		c.JSON(http.StatusOK, x.run(c.Request.Context(), ex, req))
	}
}

// Legacy returns a handler for the original per-platform endpoints
// (POST /xhs, /douyin, /toutiao).
func (x *Extraction) Legacy(platformName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ex, ok := x.Extractors.Get(platformName)
		if !ok {
			c.JSON(http.StatusOK, envelope.Unsupported(""))
			return
		}

		var req models.LegacyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Debug("invalid legacy request", "platform", platformName, "error", err)
			c.JSON(http.StatusBadRequest, envelope.Invalid(ex.WebName()))
			return
		}

		c.JSON(http.StatusOK, x.run(c.Request.Context(), ex, req.ToExtractRequest(x.Headless)))
	}
}

func (x *Extraction) run(ctx context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
	key := cache.Key(ex.Name(), req.URL)
	if x.Cache != nil {
		if env, hit := x.Cache.Get(key, req.MaxAge); hit {
			slog.Info("extraction served from cache", "platform", ex.Name(), "url", req.URL, "code", env.Code)
			return env
		}
	}

	env := x.Pool.AcquireAndRun(ctx, ex, req)
	if x.Cache != nil {
		x.Cache.Set(key, env)
	}
	return env
}
