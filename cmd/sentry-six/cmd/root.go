// Package cmd implements the CLI commands for sentry-six.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChadR23/sentry-six/internal/config"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/observability"
	"github.com/ChadR23/sentry-six/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// errUsage marks argument errors so the process exits with the
// invalid-arguments code instead of the generic I/O one.
var errUsage = errors.New("invalid arguments")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "sentry-six",
	Short:   "Tesla dashcam library indexing and export engine",
	Version: version.Short(),
	Long: `sentry-six indexes TeslaCam footage (RecentClips, SentryClips,
SavedClips) and exports multi-camera mosaics through FFmpeg, with
telemetry dashboard, minimap, and timestamp overlays extracted from the
clips' embedded SEI data.

Run "sentry-six serve" for the HTTP API, or "sentry-six export" for a
one-shot export from the command line.`,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		return models.KindInvalidArguments.ExitCode()
	}
	return models.KindOf(err).ExitCode()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/sentry-six, $HOME/.sentry-six)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, text, json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set default configuration values before reading config file
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/sentry-six")
		viper.AddConfigPath("$HOME/.sentry-six")
	}

	viper.SetEnvPrefix("SENTRYSIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig unmarshals the global viper state populated by initConfig.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return &cfg, nil
}

// initLogging configures the default slog logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (SENTRYSIX_LOGGING_LEVEL, SENTRYSIX_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, console)
func initLogging() error {
	// Start with config/env values (viper handles precedence of env > config > default)
	logCfg := config.LoggingConfig{
		Level:      viper.GetString("logging.level"),
		Format:     viper.GetString("logging.format"),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
		File:       viper.GetString("logging.file"),
		RedactGPS:  viper.GetBool("logging.redact_gps"),
	}

	// Override with CLI flags only if explicitly set by user.
	// We don't bind flags to viper because viper's flag layer would always
	// override env/config, even when using the flag's default value.
	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}
	logCfg.Format = strings.ToLower(logCfg.Format)

	observability.SetDefault(observability.NewLogger(logCfg))
	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
