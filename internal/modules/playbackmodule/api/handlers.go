// Package api provides HTTP API handlers for the playback module.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/hardware"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/models"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/service"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// PlaybackService is the part of the service the handlers use.
type PlaybackService interface {
	Decide(ctx context.Context, req service.DecideRequest) (*service.DecideResponse, error)
	Profile(name string) (*types.CapabilityProfile, error)
	ProfileNames() []string
	Policy(ctx context.Context) types.EncodingPolicy
	History(ctx context.Context, filter repository.DecisionFilter) ([]*models.DecisionRecord, error)
}

// HostReporter reports machine and accelerator state for the health endpoint.
type HostReporter interface {
	Host(ctx context.Context) hardware.HostInfo
	Detect(ctx context.Context) *hardware.Info
}

// Handler handles HTTP requests for the playback module
type Handler struct {
	playbackService PlaybackService
	host            HostReporter
	logger          hclog.Logger
}

// NewHandler creates a new API handler. host may be nil.
func NewHandler(playbackService PlaybackService, host HostReporter, logger hclog.Logger) *Handler {
	return &Handler{
		playbackService: playbackService,
		host:            host,
		logger:          logger,
	}
}

// Health handles GET /api/playback/health
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "ok",
		"profiles": len(h.playbackService.ProfileNames()),
	}
	if h.host != nil {
		resp["host"] = h.host.Host(c.Request.Context())
		resp["hardware"] = h.host.Detect(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, perrors.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, perrors.ErrInvalidInput):
		return http.StatusBadRequest
	case perrors.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	}
	switch perrors.GetType(err) {
	case perrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case perrors.ErrorTypeSource:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Debug(msg, "error", err, "status", status)
	}

	body := gin.H{"error": err.Error(), "type": perrors.GetType(err)}
	if details := perrors.GetDetails(err); len(details) > 0 {
		body["details"] = details
	}
	c.JSON(status, body)
}
