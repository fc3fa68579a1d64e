// Package config loads and hot-reloads the playback server configuration.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"gopkg.in/yaml.v3"

	"github.com/mantonx/viewra-playback/internal/hotreload"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Decision history storage
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Capability profile documents
	Profiles ProfilesConfig `yaml:"profiles" json:"profiles"`

	// Media analysis
	Media MediaConfig `yaml:"media" json:"media"`

	// Server-wide encoding policy
	Encoding types.EncodingPolicy `yaml:"encoding" json:"encoding"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host" env:"VIEWRA_HOST"`
	Port            int           `yaml:"port" json:"port" env:"VIEWRA_PORT" validate:"min=1,max=65535"`
	Mode            string        `yaml:"mode" json:"mode" env:"VIEWRA_GIN_MODE" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" env:"VIEWRA_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" env:"VIEWRA_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"VIEWRA_SHUTDOWN_TIMEOUT"`
	TrustedProxies  []string      `yaml:"trusted_proxies" json:"trusted_proxies" env:"VIEWRA_TRUSTED_PROXIES"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" json:"level" env:"VIEWRA_LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	Format       string `yaml:"format" json:"format" env:"VIEWRA_LOG_FORMAT" validate:"oneof=json text"`
	Output       string `yaml:"output" json:"output" env:"VIEWRA_LOG_OUTPUT" validate:"oneof=stdout stderr file"`
	FilePath     string `yaml:"file_path" json:"file_path" env:"VIEWRA_LOG_FILE" validate:"required_if=Output file"`
	EnableColors bool   `yaml:"enable_colors" json:"enable_colors" env:"VIEWRA_LOG_COLORS"`
}

// DatabaseConfig configures the decision history store
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled" env:"VIEWRA_HISTORY_ENABLED"`
	Type            string        `yaml:"type" json:"type" env:"DATABASE_TYPE" validate:"oneof=sqlite postgres"`
	URL             string        `yaml:"url" json:"url" env:"DATABASE_URL"`
	Host            string        `yaml:"host" json:"host" env:"POSTGRES_HOST"`
	Port            int           `yaml:"port" json:"port" env:"POSTGRES_PORT"`
	Username        string        `yaml:"username" json:"username" env:"POSTGRES_USER"`
	Password        string        `yaml:"password" json:"-" env:"POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" json:"database" env:"POSTGRES_DB"`
	DataDir         string        `yaml:"data_dir" json:"data_dir" env:"VIEWRA_DATA_DIR"`
	DatabasePath    string        `yaml:"database_path" json:"database_path" env:"VIEWRA_DATABASE_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	LogQueries      bool          `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES"`
	// Retention drops history records older than this; zero keeps everything
	Retention time.Duration `yaml:"retention" json:"retention" env:"VIEWRA_HISTORY_RETENTION"`
}

// ProfilesConfig locates the capability profile documents
type ProfilesConfig struct {
	Dir           string        `yaml:"dir" json:"dir" env:"VIEWRA_PROFILES_DIR"`
	Watch         bool          `yaml:"watch" json:"watch" env:"VIEWRA_PROFILES_WATCH"`
	DebounceDelay time.Duration `yaml:"debounce_delay" json:"debounce_delay" env:"VIEWRA_PROFILES_DEBOUNCE"`
}

// MediaConfig configures ffprobe-based media analysis
type MediaConfig struct {
	FFprobePath  string        `yaml:"ffprobe_path" json:"ffprobe_path" env:"VIEWRA_FFPROBE_PATH"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout" env:"VIEWRA_PROBE_TIMEOUT"`
	// DetectHardware probes ffmpeg for encoders when the policy asks for "auto"
	DetectHardware bool `yaml:"detect_hardware" json:"detect_hardware" env:"VIEWRA_DETECT_HARDWARE"`
}

// MetricsConfig configures the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"VIEWRA_METRICS_ENABLED"`
	Path    string `yaml:"path" json:"path" env:"VIEWRA_METRICS_PATH" validate:"required_if=Enabled true"`
}

// ConfigManager manages application configuration with hot-reload support
type ConfigManager struct {
	config     *Config
	configPath string
	watchers   []ConfigWatcher
	mu         sync.RWMutex

	logger   hclog.Logger
	validate *validator.Validate
	cpuCount func() int
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config)

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager(hclog.Default().Named("config"))
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(logger hclog.Logger) *ConfigManager {
	return &ConfigManager{
		config:   DefaultConfig(),
		watchers: make([]ConfigWatcher, 0),
		logger:   logger,
		validate: validator.New(),
		cpuCount: logicalCPUs,
	}
}

// SetLogger replaces the logger, typically once logging is configured.
func (cm *ConfigManager) SetLogger(logger hclog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TrustedProxies:  []string{},
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			Output:       "stdout",
			EnableColors: false,
		},
		Database: DatabaseConfig{
			Enabled:         true,
			Type:            "sqlite",
			Host:            "localhost",
			Port:            5432,
			Username:        "viewra",
			Database:        "viewra",
			DataDir:         "./viewra-data",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			Retention:       30 * 24 * time.Hour,
		},
		Profiles: ProfilesConfig{
			Watch:         true,
			DebounceDelay: hotreload.DefaultDebounceDelay,
		},
		Media: MediaConfig{
			FFprobePath:    "ffprobe",
			ProbeTimeout:   30 * time.Second,
			DetectHardware: true,
		},
		Encoding: types.DefaultEncodingPolicy(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConfig := cm.config.clone()
	cm.configPath = configPath

	// Start with default configuration
	newConfig := DefaultConfig()

	// Load from file if it exists
	if configPath != "" && fileExists(configPath) {
		if err := cm.loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		cm.logger.Info("configuration loaded from file", "path", configPath)
	}

	// Override with environment variables
	if err := cm.loadFromEnv(newConfig); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cm.validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Apply derived configurations
	cm.applyDerivedConfig(newConfig)

	cm.config = newConfig

	// Notify watchers of config change
	for _, watcher := range cm.watchers {
		go watcher(oldConfig, newConfig.clone())
	}

	cm.logger.Debug("configuration loaded", "database", newConfig.Database.Type, "profiles_dir", newConfig.Profiles.Dir)
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	// Return a copy to prevent external modifications
	return cm.config.clone()
}

// Policy returns a snapshot of the encoding policy for one decision call.
func (cm *ConfigManager) Policy() types.EncodingPolicy {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Encoding.Clone()
}

// AddWatcher adds a configuration change watcher
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

// SaveConfig saves the current configuration to file
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	return cm.saveToFile(cm.configPath, cm.config)
}

// Watch reloads the configuration whenever the loaded file changes, until
// ctx is cancelled. A failed reload keeps the previous configuration.
func (cm *ConfigManager) Watch(ctx context.Context) error {
	cm.mu.RLock()
	path := cm.configPath
	cm.mu.RUnlock()

	if path == "" || !fileExists(path) {
		return fmt.Errorf("no config file to watch")
	}

	w, err := hotreload.New(cm.logger, hotreload.Config{
		Paths: []string{path},
	}, func(reason string) {
		if err := cm.LoadConfig(path); err != nil {
			cm.logger.Error("config reload failed, keeping previous configuration", "reason", reason, "error", err)
			return
		}
		cm.logger.Info("configuration reloaded", "reason", reason)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Helper methods

func (c *Config) clone() *Config {
	out := *c
	out.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	out.Encoding = c.Encoding.Clone()
	return &out
}

func (cm *ConfigManager) loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func (cm *ConfigManager) saveToFile(path string, config *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (cm *ConfigManager) loadFromEnv(config *Config) error {
	return loadStructFromEnv(reflect.ValueOf(config).Elem())
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		// Get environment variable name
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		// Set field value based on type
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		values := strings.Split(value, ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func (cm *ConfigManager) validateConfig(config *Config) error {
	if err := cm.validate.Struct(config); err != nil {
		return err
	}
	if config.Database.Type == "postgres" && config.Database.URL == "" && config.Database.Host == "" {
		return fmt.Errorf("postgres requires url or host")
	}
	return nil
}

func (cm *ConfigManager) applyDerivedConfig(config *Config) {
	// Set derived database path if not explicitly set
	if config.Database.DatabasePath == "" && config.Database.Type == "sqlite" {
		config.Database.DatabasePath = filepath.Join(config.Database.DataDir, "playback.db")
	}

	if config.Profiles.Dir == "" {
		config.Profiles.Dir = filepath.Join(config.Database.DataDir, "profiles")
	}

	if config.Encoding.TranscodingTempPath == "" {
		config.Encoding.TranscodingTempPath = filepath.Join(config.Database.DataDir, "transcodes")
	}

	// More encoder threads than cores only adds contention
	if n := cm.cpuCount(); n > 0 && config.Encoding.EncodingThreadCount > n {
		cm.logger.Warn("encoding thread count exceeds logical CPUs, clamping",
			"configured", config.Encoding.EncodingThreadCount, "cpus", n)
		config.Encoding.EncodingThreadCount = n
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil {
		return 0
	}
	return n
}

// Global convenience functions

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// AddWatcher adds a global configuration watcher
func AddWatcher(watcher ConfigWatcher) {
	GetConfigManager().AddWatcher(watcher)
}

// Save saves the current configuration
func Save() error {
	return GetConfigManager().SaveConfig()
}
