package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/mantonx/viewra-playback/internal/config"
	"github.com/mantonx/viewra-playback/internal/database"
	"github.com/mantonx/viewra-playback/internal/logger"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule"
	"github.com/mantonx/viewra-playback/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "viewra-playback:", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "", "path to viewra.yaml (default $VIEWRA_CONFIG_PATH or ./viewra.yaml)")
	flag.Parse()

	configPath := resolveConfigPath(*configFlag)

	// Initialize configuration system first
	cm := config.GetConfigManager()
	if err := cm.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load configuration from %q: %w", configPath, err)
	}
	cfg := cm.GetConfig()

	log, closer, err := logger.Init("viewra-playback", cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	cm.SetLogger(log.Named("config"))

	if configPath != "" {
		log.Info("configuration loaded", "path", configPath)
	} else {
		log.Info("using default configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		if err := cm.Watch(ctx); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
	}

	var db *gorm.DB
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database, log.Named("database"))
		if err != nil {
			return err
		}
		defer database.Close(db)
	}

	module, err := playbackmodule.New(playbackmodule.Options{
		Config: cm,
		DB:     db,
		Logger: log,
	})
	if err != nil {
		return err
	}
	if err := module.Migrate(ctx); err != nil {
		return err
	}
	if err := module.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := module.Shutdown(); err != nil {
			log.Error("playback module shutdown error", "error", err)
		}
	}()

	router, err := server.SetupRouter(cfg.Server, log, module)
	if err != nil {
		return err
	}

	if err := server.New(cfg.Server, router, log).Run(ctx); err != nil {
		return err
	}
	log.Info("server shutdown complete")
	return nil
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("VIEWRA_CONFIG_PATH"); env != "" {
		return env
	}
	for _, candidate := range []string{"./viewra.yaml", "/app/viewra-data/viewra.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
