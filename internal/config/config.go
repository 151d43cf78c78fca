package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"wabridge/internal/constants"
	"wabridge/internal/models"
	"wabridge/internal/security"
)

var (
	ErrMissingProvider      = models.ConfigError{Message: "missing whatsapp provider"}
	ErrMissingTelegramToken = models.ConfigError{Message: "missing telegram bot token"}
	ErrMissingTelegramGroup = models.ConfigError{Message: "missing telegram group ID"}
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
	ErrMissingMediaDir      = models.ConfigError{Message: "missing media cache directory"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.WhatsApp.Provider == "" {
		return ErrMissingProvider
	}

	switch c.WhatsApp.Provider {
	case "cloud":
		if c.WhatsApp.Cloud.Token == "" {
			return models.ConfigError{Message: "cloud provider requires a token"}
		}
		if c.WhatsApp.Cloud.PhoneNumberID == "" {
			return models.ConfigError{Message: "cloud provider requires a phone number ID"}
		}
	case "waha":
		if c.WhatsApp.Waha.BaseURL == "" {
			return models.ConfigError{Message: "waha provider requires a base URL"}
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown whatsapp provider: %q", c.WhatsApp.Provider)}
	}

	if c.Telegram.Token == "" {
		return ErrMissingTelegramToken
	}
	if c.Telegram.GroupID == 0 {
		return ErrMissingTelegramGroup
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Media.CacheDir == "" {
		return ErrMissingMediaDir
	}

	applyDefaults(c)
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = 24
	}

	if c.WhatsApp.Cloud.APIVersion == "" {
		c.WhatsApp.Cloud.APIVersion = constants.DefaultCloudAPIVersion
	}
	if c.WhatsApp.Waha.Session == "" {
		c.WhatsApp.Waha.Session = constants.DefaultWahaSession
	}
	if c.WhatsApp.TimeoutSec <= 0 {
		c.WhatsApp.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Telegram.TimeoutSec <= 0 {
		c.Telegram.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}

	if c.Media.MaxSizeMB.Image == 0 {
		c.Media.MaxSizeMB.Image = constants.DefaultMaxImageSizeMB
	}
	if c.Media.MaxSizeMB.Video == 0 {
		c.Media.MaxSizeMB.Video = constants.DefaultMaxVideoSizeMB
	}
	if c.Media.MaxSizeMB.Document == 0 {
		c.Media.MaxSizeMB.Document = constants.DefaultMaxDocumentSizeMB
	}
	if c.Media.MaxSizeMB.Voice == 0 {
		c.Media.MaxSizeMB.Voice = constants.DefaultMaxVoiceSizeMB
	}
	if len(c.Media.AllowedTypes.Image) == 0 {
		c.Media.AllowedTypes.Image = constants.DefaultImageTypes
	}
	if len(c.Media.AllowedTypes.Video) == 0 {
		c.Media.AllowedTypes.Video = constants.DefaultVideoTypes
	}
	if len(c.Media.AllowedTypes.Document) == 0 {
		c.Media.AllowedTypes.Document = constants.DefaultDocumentTypes
	}
	if len(c.Media.AllowedTypes.Voice) == 0 {
		c.Media.AllowedTypes.Voice = constants.DefaultVoiceTypes
	}

	if c.Delivery.Workers <= 0 {
		c.Delivery.Workers = constants.DefaultWorkerCount
	}
	if c.Delivery.QueueSize <= 0 {
		c.Delivery.QueueSize = constants.DefaultJobQueueSize
	}
	if c.Delivery.MaxAttempts <= 0 {
		c.Delivery.MaxAttempts = constants.DefaultDeliveryAttempts
	}
	if c.Delivery.AttemptTimeoutSec <= 0 {
		c.Delivery.AttemptTimeoutSec = constants.DefaultAttemptTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
}

// applyEnvironmentOverrides lets deployments keep credentials out of the
// config file.
func applyEnvironmentOverrides(c *models.Config) {
	if token := os.Getenv("WABRIDGE_CLOUD_TOKEN"); token != "" {
		c.WhatsApp.Cloud.Token = token
	}
	if verify := os.Getenv("WABRIDGE_CLOUD_VERIFY_TOKEN"); verify != "" {
		c.WhatsApp.Cloud.VerifyToken = verify
	}
	if key := os.Getenv("WABRIDGE_WAHA_API_KEY"); key != "" {
		c.WhatsApp.Waha.APIKey = key
	}
	if url := os.Getenv("WABRIDGE_WAHA_URL"); url != "" {
		c.WhatsApp.Waha.BaseURL = url
	}
	if token := os.Getenv("WABRIDGE_TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if group := os.Getenv("WABRIDGE_TELEGRAM_GROUP_ID"); group != "" {
		if id, err := strconv.ParseInt(group, 10, 64); err == nil {
			c.Telegram.GroupID = id
		}
	}
	if path := os.Getenv("WABRIDGE_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("WABRIDGE_MEDIA_DIR"); dir != "" {
		c.Media.CacheDir = dir
	}
}

// validateSecurity enforces rules that only matter once real traffic flows.
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("WABRIDGE_ENV") == "production"

	if isProduction {
		if c.WhatsApp.Provider == "cloud" && c.WhatsApp.Cloud.VerifyToken == "" {
			return models.ConfigError{Message: "cloud webhook verify token is required in production (set WABRIDGE_CLOUD_VERIFY_TOKEN)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production"}
		}
	} else {
		if c.WhatsApp.Provider == "cloud" && c.WhatsApp.Cloud.VerifyToken == "" {
			fmt.Fprintf(os.Stderr, "WARNING: cloud webhook verify token not set. Set WABRIDGE_CLOUD_VERIFY_TOKEN for webhook verification.\n")
		}
	}

	return nil
}
