// --- File: subscriber/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-subscription/subscriber/config"
	"gopkg.in/yaml.v3"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := []byte(`
vapid_public_key: yaml-public-key
api_base_url: https://api.practice.test
service_worker_path: /push-sw.js
service_worker_scope: /portal/
sync_timeout: 5s
storage_probe_timeout: 250ms
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "yaml-public-key", cfg.VapidPublicKey)
		assert.Equal(t, "https://api.practice.test", cfg.APIBaseURL)
		assert.Equal(t, "/push-sw.js", cfg.ServiceWorkerPath)
		assert.Equal(t, "/portal/", cfg.ServiceWorkerScope)
		assert.Equal(t, 5*time.Second, cfg.SyncTimeout)
		assert.Equal(t, 250*time.Millisecond, cfg.StorageProbeTimeout)
	})

	t.Run("Failure - bad duration", func(t *testing.T) {
		_, err := config.NewConfigFromYaml(&config.YamlConfig{SyncTimeout: "soon"}, logger)
		assert.Error(t, err)
	})
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - overrides and defaults applied", func(t *testing.T) {
		cfg := &config.Config{APIBaseURL: "https://base.test"}

		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("PUSH_SYNC_TIMEOUT", "3s")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-pub", finalCfg.VapidPublicKey)
		assert.Equal(t, 3*time.Second, finalCfg.SyncTimeout)
		assert.Equal(t, "/sw.js", finalCfg.ServiceWorkerPath)
		assert.Equal(t, "/", finalCfg.ServiceWorkerScope)
		assert.Equal(t, 500*time.Millisecond, finalCfg.StorageProbeTimeout)
	})

	t.Run("Success - missing VAPID key is not a load error", func(t *testing.T) {
		t.Setenv("VAPID_PUBLIC_KEY", "")
		finalCfg, err := config.UpdateConfigWithEnvOverrides(&config.Config{APIBaseURL: "https://base.test"}, logger)
		require.NoError(t, err)
		assert.Empty(t, finalCfg.VapidPublicKey)
	})

	t.Run("Validation Failure - missing API base URL", func(t *testing.T) {
		t.Setenv("PUSH_API_BASE_URL", "")
		_, err := config.UpdateConfigWithEnvOverrides(&config.Config{}, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - relative service worker path", func(t *testing.T) {
		_, err := config.UpdateConfigWithEnvOverrides(&config.Config{APIBaseURL: "https://base.test", ServiceWorkerPath: "sw.js"}, logger)
		assert.Error(t, err)
	})
}
