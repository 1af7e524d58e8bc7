package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/postwatch/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when every concurrency slot is taken.
func Health(pool Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.MaxConcurrency > 0 && stats.Available == 0 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}

// LegacyHealth returns a handler for GET /health in the original shape.
func LegacyHealth(pool Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()
		c.JSON(http.StatusOK, models.LegacyHealthResponse{
			Status:                    "ok",
			TotalWorkers:              stats.Workers,
			MaxConcurrency:            stats.MaxConcurrency,
			AvailableConcurrencySlots: stats.Available,
		})
	}
}

// PoolStats returns a handler for GET /api/v1/pool with per-identity detail.
func PoolStats(pool Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pool.Stats())
	}
}
