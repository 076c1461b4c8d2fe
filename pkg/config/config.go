// Package config loads, validates, and materializes the server
// configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (SFTPSERVER_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Storage backends follow a factory pattern: the Storage section carries a
// Type selector plus one free-form map per backend type, and only the map
// matching the selected type is decoded. This keeps backend-specific
// options out of the top-level schema.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	adapterSftp "github.com/LazuliKao/SFTPServer/pkg/adapter/sftp"
)

// Config is the complete server configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings.
	Server ServerConfig `mapstructure:"server"`

	// Storage selects and configures the storage backend.
	Storage StorageConfig `mapstructure:"storage"`

	// Adapters contains protocol adapter configurations.
	Adapters AdaptersConfig `mapstructure:"adapters"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig selects the storage backend. Only the section matching
// Type is used.
type StorageConfig struct {
	// Type selects the backend implementation.
	Type string `mapstructure:"type" validate:"required,oneof=local memory badger s3"`

	// Local configures the local filesystem backend (type = "local").
	Local map[string]any `mapstructure:"local"`

	// Memory configures the in-memory backend (type = "memory").
	Memory map[string]any `mapstructure:"memory"`

	// Badger configures the BadgerDB backend (type = "badger").
	Badger map[string]any `mapstructure:"badger"`

	// S3 configures the S3 backend (type = "s3").
	S3 map[string]any `mapstructure:"s3"`
}

// AdaptersConfig contains protocol adapter configurations.
type AdaptersConfig struct {
	// SFTP uses the adapter's own config type directly to avoid
	// duplication.
	SFTP adapterSftp.SFTPConfig `mapstructure:"sftp"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on.
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP port. Defaults to 9090.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load reads configuration from file, environment, and defaults, then
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and file search
// paths. SFTPSERVER_LOGGING_LEVEL=DEBUG maps to logging.level.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SFTPSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present. A missing file
// is fine: defaults apply. Viper reports the missing file differently
// depending on whether the path was explicit or searched, so both shapes
// are tolerated.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/sftpserver, falling back to
// ~/.config/sftpserver, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sftpserver")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sftpserver")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
