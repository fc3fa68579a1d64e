// Package api provides HTTP API endpoints for the playback module.
// Routes registers all playback-related endpoints with the Gin router.
package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all playback module routes with the given router group.
//
// Endpoints:
//   - POST /decide - Decide how a media item is served to a device
//   - GET /profiles - List capability profiles
//   - GET /profiles/:name - Get one capability profile
//   - GET /policy - Effective encoding policy
//   - GET /history - Recorded decisions
//   - GET /health - Service and host status
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	router.POST("/decide", handler.Decide)

	profiles := router.Group("/profiles")
	{
		profiles.GET("", handler.ListProfiles)
		profiles.GET("/:name", handler.GetProfile)
	}

	router.GET("/policy", handler.GetPolicy)
	router.GET("/history", handler.History)
	router.GET("/health", handler.Health)
}
