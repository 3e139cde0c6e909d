// --- File: subscriber/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config defines the *single*, authoritative client configuration.
type Config struct {
	// VapidPublicKey is deliberately not validated here: an absent or bad
	// key is reported by the first Subscribe, not at load time.
	VapidPublicKey string
	APIBaseURL     string

	ServiceWorkerPath  string
	ServiceWorkerScope string

	SyncTimeout         time.Duration
	StorageProbeTimeout time.Duration
}

const (
	defaultServiceWorkerPath   = "/sw.js"
	defaultServiceWorkerScope  = "/"
	defaultSyncTimeout         = 10 * time.Second
	defaultStorageProbeTimeout = 500 * time.Millisecond
)

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.VapidPublicKey = val
	}
	if val := os.Getenv("PUSH_API_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_API_BASE_URL", "source", "env")
		cfg.APIBaseURL = val
	}
	if val := os.Getenv("PUSH_SW_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_SW_PATH", "source", "env")
		cfg.ServiceWorkerPath = val
	}
	if val := os.Getenv("PUSH_SW_SCOPE"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_SW_SCOPE", "source", "env")
		cfg.ServiceWorkerScope = val
	}
	if val := os.Getenv("PUSH_SYNC_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_SYNC_TIMEOUT %q: %w", val, err)
		}
		cfg.SyncTimeout = d
	}
	if val := os.Getenv("PUSH_STORAGE_PROBE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_STORAGE_PROBE_TIMEOUT %q: %w", val, err)
		}
		cfg.StorageProbeTimeout = d
	}

	// Final Validation
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api_base_url is required (set via YAML or PUSH_API_BASE_URL env var)")
	}
	if cfg.ServiceWorkerPath == "" {
		cfg.ServiceWorkerPath = defaultServiceWorkerPath
	}
	if !strings.HasPrefix(cfg.ServiceWorkerPath, "/") {
		return nil, fmt.Errorf("service worker path %q must be root-relative", cfg.ServiceWorkerPath)
	}
	if cfg.ServiceWorkerScope == "" {
		cfg.ServiceWorkerScope = defaultServiceWorkerScope
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
	if cfg.StorageProbeTimeout <= 0 {
		cfg.StorageProbeTimeout = defaultStorageProbeTimeout
	}
	if cfg.VapidPublicKey == "" {
		logger.Warn("VAPID public key missing in configuration. Subscribe will fail.")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
