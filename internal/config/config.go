// Package config provides configuration management for sentry-six using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8323
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultIndexBatchSize    = 500
	defaultProbeEncodeTimeout = 5 * time.Second
	defaultProbeQueryTimeout  = 2 * time.Second
	defaultKillGracePeriod    = 3 * time.Second
	defaultTempRetention      = 24 * time.Hour
	defaultOverlayFPS         = 36
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Library  LibraryConfig  `mapstructure:"library"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration for serve mode.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LibraryConfig holds footage library configuration.
type LibraryConfig struct {
	// Root is the footage root containing RecentClips/SentryClips/SavedClips.
	Root string `mapstructure:"root"`
	// IndexBatchSize is how many files the indexer processes between
	// progress publications and cancellation checks.
	IndexBatchSize int `mapstructure:"index_batch_size"`
	// Watch enables fsnotify-driven incremental refresh in serve mode.
	Watch bool `mapstructure:"watch"`
}

// StorageConfig holds working-directory configuration.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	TempDir string `mapstructure:"temp_dir"`
	// TempRetention is how long terminated jobs' overlay artifacts are
	// kept before the scheduled cleanup removes them.
	TempRetention time.Duration `mapstructure:"temp_retention"`
	// CleanupCron is a cron expression for the temp cleanup in serve mode.
	CleanupCron string `mapstructure:"cleanup_cron"`
}

// DatabaseConfig holds the job-history database configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file; empty disables job history.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text, console
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
	// File, when set, receives JSON logs in addition to the console.
	File string `mapstructure:"file"`
	// RedactGPS strips latitude/longitude attributes from log output.
	RedactGPS bool `mapstructure:"redact_gps"`
}

// FFmpegConfig holds FFmpeg binary and probing configuration.
type FFmpegConfig struct {
	// BinaryPath overrides binary discovery (empty = auto-detect).
	BinaryPath string `mapstructure:"binary_path"`
	// ProbeEncodeTimeout bounds each candidate encoder test.
	ProbeEncodeTimeout time.Duration `mapstructure:"probe_encode_timeout"`
	// ProbeQueryTimeout bounds each help/listing query.
	ProbeQueryTimeout time.Duration `mapstructure:"probe_query_timeout"`
	// KillGracePeriod is how long a cancelled child gets to exit after
	// the termination signal before it is force-killed.
	KillGracePeriod time.Duration `mapstructure:"kill_grace_period"`
}

// ExportConfig holds export pipeline defaults.
type ExportConfig struct {
	// OverlayFPS is the frame rate the overlay timeline is quantized to.
	OverlayFPS int `mapstructure:"overlay_fps"`
	// Language is the default translation language tag.
	Language string `mapstructure:"language"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with SENTRYSIX_, using underscores for nesting.
// Example: SENTRYSIX_LIBRARY_ROOT=/media/TeslaCam.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentry-six")
		v.AddConfigPath("$HOME/.sentry-six")
	}

	v.SetEnvPrefix("SENTRYSIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("library.root", "")
	v.SetDefault("library.index_batch_size", defaultIndexBatchSize)
	v.SetDefault("library.watch", false)

	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.temp_retention", defaultTempRetention)
	v.SetDefault("storage.cleanup_cron", "0 * * * *") // hourly

	v.SetDefault("database.path", "sentry-six.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.redact_gps", true)

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_encode_timeout", defaultProbeEncodeTimeout)
	v.SetDefault("ffmpeg.probe_query_timeout", defaultProbeQueryTimeout)
	v.SetDefault("ffmpeg.kill_grace_period", defaultKillGracePeriod)

	v.SetDefault("export.overlay_fps", defaultOverlayFPS)
	v.SetDefault("export.language", "en")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Library.IndexBatchSize < 1 {
		return fmt.Errorf("library.index_batch_size must be at least 1")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text, console")
	}

	if c.Export.OverlayFPS < 1 {
		return fmt.Errorf("export.overlay_fps must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}
