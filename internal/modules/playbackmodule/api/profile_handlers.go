package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// ListProfiles handles GET /api/playback/profiles
func (h *Handler) ListProfiles(c *gin.Context) {
	names := h.playbackService.ProfileNames()
	list := make([]*types.CapabilityProfile, 0, len(names))
	for _, name := range names {
		profile, err := h.playbackService.Profile(name)
		if err != nil {
			// Removed by a concurrent reload
			continue
		}
		list = append(list, profile)
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": list,
		"count":    len(list),
	})
}

// GetProfile handles GET /api/playback/profiles/:name
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.playbackService.Profile(c.Param("name"))
	if err != nil {
		h.respondError(c, err, "Failed to get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetPolicy handles GET /api/playback/policy
// It returns the effective encoding policy after automatic values are resolved.
func (h *Handler) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.playbackService.Policy(c.Request.Context()))
}
