package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes, all read only
	v1 := router.Group("/api/v1")
	{
		v1.GET("/assets", handler.ListAssets)
		v1.GET("/assets/:id", handler.GetAsset)
		v1.GET("/assets/:id/history", handler.GetAssetHistory)

		v1.GET("/users/:address", handler.GetUser)

		v1.GET("/stats", handler.GetStats)

		v1.GET("/proposals/:id", handler.GetProposal)

		v1.GET("/anomalies", handler.ListAnomalies)
	}
}
