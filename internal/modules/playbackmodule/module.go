// Package playbackmodule provides playback decisions.
// It wires profile sources, media analysis, hardware probing, the decision
// engine, decision history and metrics behind the HTTP API.
package playbackmodule

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/viewra-playback/internal/config"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/api"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/hardware"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/mediainfo"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/metrics"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/profiles"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/service"
)

// RetentionInterval is how often expired decision records are pruned.
const RetentionInterval = time.Hour

// Options configures a Module. Config and Logger are required. A nil DB
// disables decision history.
type Options struct {
	Config *config.ConfigManager
	DB     *gorm.DB
	Logger hclog.Logger

	// Runners replace ffprobe and ffmpeg execution; nil runs the real binaries
	ProbeRunner    mediainfo.CommandRunner
	HardwareRunner hardware.CommandRunner
}

// Module represents the playback module.
type Module struct {
	config *config.ConfigManager
	db     *gorm.DB
	logger hclog.Logger

	// Sources
	registry *profiles.Registry
	source   *profiles.DirSource
	analyzer *mediainfo.Analyzer
	detector *hardware.Detector

	// Storage and instrumentation
	repository *repository.DecisionRepository
	metrics    *metrics.Metrics

	// Service layer
	playbackService *service.PlaybackService

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the module. Init must be called before routes are registered.
func New(opts Options) (*Module, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	cfg := opts.Config.GetConfig()
	logger := opts.Logger.Named("playback-module")

	analyzer := mediainfo.NewAnalyzer(logger, cfg.Media.FFprobePath, opts.ProbeRunner)
	analyzer.SetTimeout(cfg.Media.ProbeTimeout)

	registry := profiles.NewRegistry(logger, nil)

	m := &Module{
		config:   opts.Config,
		db:       opts.DB,
		logger:   logger,
		registry: registry,
		source:   profiles.NewDirSource(logger, cfg.Profiles.Dir, registry),
		analyzer: analyzer,
		detector: hardware.NewDetector(logger, cfg.Encoding.EncoderAppPath, opts.HardwareRunner),
	}
	if opts.DB != nil {
		m.repository = repository.NewDecisionRepository(opts.DB)
	}
	if cfg.Metrics.Enabled {
		m.metrics = metrics.New()
	}
	return m, nil
}

// ID returns the module identifier
func (m *Module) ID() string {
	return "playback"
}

// Name returns the human-readable module name
func (m *Module) Name() string {
	return "Playback Module"
}

// Version returns the module version
func (m *Module) Version() string {
	return "1.0.0"
}

// Migrate performs database migrations for the module
func (m *Module) Migrate(ctx context.Context) error {
	if m.repository == nil {
		return nil
	}
	if err := m.repository.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate playback module: %w", err)
	}
	m.logger.Info("playback module migrations completed")
	return nil
}

// Init loads profiles, starts the watchers and builds the playback service.
func (m *Module) Init(ctx context.Context) error {
	m.logger.Info("initializing playback module")
	cfg := m.config.GetConfig()

	if m.metrics != nil {
		m.source.OnLoad(m.metrics.SetProfilesLoaded)
		m.metrics.SetProfilesLoaded(m.registry.Len())
	}

	if err := os.MkdirAll(cfg.Profiles.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}
	if err := m.source.Load(); err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	if cfg.Profiles.Watch {
		if err := m.source.Watch(cfg.Profiles.DebounceDelay); err != nil {
			return fmt.Errorf("failed to watch profiles: %w", err)
		}
	}

	// Hardware capability changes with the configured accelerator
	m.config.AddWatcher(func(oldConfig, newConfig *config.Config) {
		if oldConfig.Encoding.HardwareAccelerationType != newConfig.Encoding.HardwareAccelerationType ||
			oldConfig.Encoding.VaapiDevice != newConfig.Encoding.VaapiDevice {
			m.detector.Invalidate()
			m.logger.Info("hardware acceleration settings changed, re-probing")
		}
	})

	deps := service.Dependencies{
		Profiles: m.registry,
		Policy:   m.config,
		Analyzer: m.analyzer,
	}
	if cfg.Media.DetectHardware {
		deps.Resolver = m.detector
	}
	if m.repository != nil {
		deps.History = m.repository
	}
	if m.metrics != nil {
		deps.Metrics = m.metrics
	}
	m.playbackService = service.NewPlaybackService(m.logger.Named("service"), deps)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if m.repository != nil && cfg.Database.Retention > 0 {
		m.wg.Add(1)
		go m.retentionLoop(runCtx, cfg.Database.Retention)
	}

	m.logger.Info("playback module initialized", "profiles", m.registry.Len(), "history", m.repository != nil)
	return nil
}

// RegisterRoutes registers HTTP routes for the playback module
func (m *Module) RegisterRoutes(router *gin.Engine) {
	// Register routes under /api/playback
	api.RegisterRoutes(router.Group("/api/playback"), m.CreateAPIHandler())

	if m.metrics != nil {
		path := m.config.GetConfig().Metrics.Path
		router.GET(path, gin.WrapH(m.metrics.HTTPHandler()))
	}

	m.logger.Info("playback module routes registered")
}

// CreateAPIHandler creates the API handler for this module
func (m *Module) CreateAPIHandler() *api.Handler {
	return api.NewHandler(m.playbackService, m.detector, m.logger.Named("api"))
}

// Service returns the playback service. It is nil before Init.
func (m *Module) Service() *service.PlaybackService {
	return m.playbackService
}

// Registry returns the live profile registry
func (m *Module) Registry() *profiles.Registry {
	return m.registry
}

// PruneHistory deletes decision records older than retention.
func (m *Module) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if m.repository == nil {
		return 0, nil
	}
	return m.repository.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

func (m *Module) retentionLoop(ctx context.Context, retention time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := m.PruneHistory(ctx, retention)
			if err != nil {
				m.logger.Error("failed to prune decision history", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug("pruned decision history", "deleted", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown gracefully shuts down the module
func (m *Module) Shutdown() error {
	m.logger.Info("shutting down playback module")

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if err := m.source.Close(); err != nil {
		m.logger.Error("failed to stop profile watcher", "error", err)
		return err
	}
	return nil
}
