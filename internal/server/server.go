// Package server builds the gin engine and HTTP server for the playback API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/config"
	"github.com/mantonx/viewra-playback/internal/middleware"
)

// HealthPath is the liveness endpoint; it is excluded from request logs.
const HealthPath = "/api/health"

// RouteRegistrar is a module that mounts its own routes.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// SetupRouter configures and returns the main router
func SetupRouter(cfg config.ServerConfig, logger hclog.Logger, modules ...RouteRegistrar) (*gin.Engine, error) {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(
		gin.Recovery(),
		middleware.CORS(),
		middleware.RequestLogger(logger.Named("http"), HealthPath),
		middleware.ErrorLogger(logger.Named("http")),
	)

	r.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, m := range modules {
		m.RegisterRoutes(r)
	}
	return r, nil
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	srv    *http.Server
	cfg    config.ServerConfig
	logger hclog.Logger
}

// New creates a server for handler.
func New(cfg config.ServerConfig, handler http.Handler, logger hclog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting playback server", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}
