// Package api - Playback decision handlers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/service"
)

// DefaultHistoryLimit is used when the history request omits a limit.
const DefaultHistoryLimit = 50

// Decide handles POST /api/playback/decide
// It determines how a media item is served to the requesting device.
//
// Request body:
//
//	{
//	  "device": {"name": "Roku", "user_agent": "Roku/DVP-12.0"},
//	  "profile": "Roku",
//	  "media_path": "/media/movie.mkv",
//	  "media": {"container": "mkv", "streams": [{"type": "Video", "codec": "hevc"}]}
//	}
//
// Either media or media_path is required. The request User-Agent header is
// used when the body names no device.
func (h *Handler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Device.Name == "" && req.Device.UserAgent == "" {
		req.Device.UserAgent = c.Request.UserAgent()
	}

	resp, err := h.playbackService.Decide(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "Failed to make playback decision")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/playback/history
//
// Query parameters:
//   - limit: page size (default 50)
//   - offset: records to skip
//   - profile: only decisions for this profile
//   - kind: only decisions of this kind
//   - since: RFC 3339 timestamp lower bound
func (h *Handler) History(c *gin.Context) {
	filter := repository.DecisionFilter{
		ProfileName: c.Query("profile"),
		Kind:        c.Query("kind"),
		Limit:       DefaultHistoryLimit,
	}

	var err error
	if raw := c.Query("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil || filter.Offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
	}
	if raw := c.Query("since"); raw != "" {
		if filter.Since, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
	}

	records, err := h.playbackService.History(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "Failed to list playback history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decisions": records,
		"count":     len(records),
	})
}
