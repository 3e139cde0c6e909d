// --- File: subscriber/config/yaml_config.go ---
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	VapidPublicKey      string `yaml:"vapid_public_key"`
	APIBaseURL          string `yaml:"api_base_url"`
	ServiceWorkerPath   string `yaml:"service_worker_path"`
	ServiceWorkerScope  string `yaml:"service_worker_scope"`
	SyncTimeout         string `yaml:"sync_timeout"`
	StorageProbeTimeout string `yaml:"storage_probe_timeout"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		VapidPublicKey:     baseCfg.VapidPublicKey,
		APIBaseURL:         baseCfg.APIBaseURL,
		ServiceWorkerPath:  baseCfg.ServiceWorkerPath,
		ServiceWorkerScope: baseCfg.ServiceWorkerScope,
	}

	var err error
	if cfg.SyncTimeout, err = parseOptionalDuration("sync_timeout", baseCfg.SyncTimeout); err != nil {
		return nil, err
	}
	if cfg.StorageProbeTimeout, err = parseOptionalDuration("storage_probe_timeout", baseCfg.StorageProbeTimeout); err != nil {
		return nil, err
	}

	logger.Debug("YAML config mapping complete",
		"api_base_url", cfg.APIBaseURL,
		"service_worker_path", cfg.ServiceWorkerPath,
		"sync_timeout", cfg.SyncTimeout,
	)
	return cfg, nil
}

func parseOptionalDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}
