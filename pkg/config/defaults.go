package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills in zero values after loading. Explicit values are
// always preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyAdaptersDefaults(&cfg.Adapters)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}

	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.Local["path"]; !ok {
		cfg.Local["path"] = "/srv/sftp"
	}
}

func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A freshly loaded config with no file must still have one adapter
	// enabled; an explicit enabled: false is respected because it comes
	// with an explicit port.
	if !cfg.SFTP.Enabled && cfg.SFTP.Port == 0 {
		cfg.SFTP.Enabled = true
	}

	if cfg.SFTP.Port == 0 {
		cfg.SFTP.Port = 2022
	}
	if cfg.SFTP.IdleTimeout == 0 {
		cfg.SFTP.IdleTimeout = 5 * time.Minute
	}
	if cfg.SFTP.ShutdownTimeout == 0 {
		cfg.SFTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.SFTP.Root == "" {
		cfg.SFTP.Root = "/"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config with all defaults applied. Used for
// sample file generation and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Local:  make(map[string]any),
			Memory: make(map[string]any),
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
