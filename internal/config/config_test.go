package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"wabridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfigMap() map[string]interface{} {
	return map[string]interface{}{
		"whatsapp": map[string]interface{}{
			"provider": "waha",
			"waha": map[string]interface{}{
				"base_url": "http://localhost:3000",
			},
		},
		"telegram": map[string]interface{}{
			"token":    "123:abc",
			"group_id": -100123456,
		},
		"database": map[string]interface{}{
			"path": "/tmp/wabridge.db",
		},
		"media": map[string]interface{}{
			"cache_dir": "/tmp/wabridge-media",
		},
	}
}

func writeConfig(t *testing.T, cfg map[string]interface{}) string {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, validConfigMap())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "waha", cfg.WhatsApp.Provider)
	assert.Equal(t, int64(-100123456), cfg.Telegram.GroupID)

	// Defaults are applied
	assert.Equal(t, "default", cfg.WhatsApp.Waha.Session)
	assert.Equal(t, 5, cfg.Delivery.MaxAttempts)
	assert.Equal(t, 20, cfg.Delivery.AttemptTimeoutSec)
	assert.Equal(t, 8, cfg.Delivery.Workers)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.NotEmpty(t, cfg.Media.AllowedTypes.Image)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigMissingProvider(t *testing.T) {
	cfg := validConfigMap()
	delete(cfg, "whatsapp")
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestLoadConfigUnknownProvider(t *testing.T) {
	cfg := validConfigMap()
	cfg["whatsapp"] = map[string]interface{}{"provider": "smoke-signals"}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown whatsapp provider")
}

func TestLoadConfigCloudRequiresCredentials(t *testing.T) {
	cfg := validConfigMap()
	cfg["whatsapp"] = map[string]interface{}{"provider": "cloud"}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingTelegramToken(t *testing.T) {
	cfg := validConfigMap()
	cfg["telegram"] = map[string]interface{}{"group_id": -1}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingTelegramToken)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("WABRIDGE_TELEGRAM_TOKEN", "env:token")
	t.Setenv("WABRIDGE_DB_PATH", "/var/lib/wabridge/relay.db")

	path := writeConfig(t, validConfigMap())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env:token", cfg.Telegram.Token)
	assert.Equal(t, "/var/lib/wabridge/relay.db", cfg.Database.Path)
}

func TestLoadConfigEnvSuppliesCloudCredentials(t *testing.T) {
	t.Setenv("WABRIDGE_CLOUD_TOKEN", "graph-token")

	cfg := validConfigMap()
	cfg["whatsapp"] = map[string]interface{}{
		"provider": "cloud",
		"cloud": map[string]interface{}{
			"phone_number_id": "555000",
		},
	}
	path := writeConfig(t, cfg)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "graph-token", loaded.WhatsApp.Cloud.Token)
	assert.Equal(t, "v21.0", loaded.WhatsApp.Cloud.APIVersion)
}

func TestLoadConfigProductionRequiresVerifyToken(t *testing.T) {
	t.Setenv("WABRIDGE_ENV", "production")

	cfg := validConfigMap()
	cfg["whatsapp"] = map[string]interface{}{
		"provider": "cloud",
		"cloud": map[string]interface{}{
			"token":           "tok",
			"phone_number_id": "555000",
		},
	}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify token")
}

func TestLoadConfigProductionRejectsDebugLogging(t *testing.T) {
	t.Setenv("WABRIDGE_ENV", "production")

	cfg := validConfigMap()
	cfg["log_level"] = "debug"
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug logging")
}

func TestConfigErrorMessage(t *testing.T) {
	err := models.ConfigError{Message: "boom"}
	assert.Equal(t, "boom", err.Error())
}
