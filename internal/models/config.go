package models

// Config holds the application configuration
type Config struct {
	Server        ServerConfig   `json:"server"`
	WhatsApp      WhatsAppConfig `json:"whatsapp"`
	Telegram      TelegramConfig `json:"telegram"`
	Database      DatabaseConfig `json:"database"`
	Media         MediaConfig    `json:"media"`
	Retry         RetryConfig    `json:"retry"`
	Delivery      DeliveryConfig `json:"delivery"`
	Tracing       TracingConfig  `json:"tracing"`
	LogLevel      string         `json:"log_level"`
	RetentionDays int            `json:"retentionDays"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port                 int `json:"port"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

// WhatsAppConfig selects and configures the customer-channel provider.
type WhatsAppConfig struct {
	Provider   string      `json:"provider"` // "cloud" or "waha"
	Cloud      CloudConfig `json:"cloud"`
	Waha       WahaConfig  `json:"waha"`
	TimeoutSec int         `json:"timeoutSec"`
}

// CloudConfig holds WhatsApp Cloud API credentials
type CloudConfig struct {
	Token         string `json:"token"`
	PhoneNumberID string `json:"phone_number_id"`
	APIVersion    string `json:"api_version"`
	VerifyToken   string `json:"verify_token"`
}

// WahaConfig holds self-hosted WAHA gateway settings
type WahaConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	BasicAuth string `json:"basic_auth"`
	Session   string `json:"session"`
}

// TelegramConfig holds team-side Bot API settings
type TelegramConfig struct {
	Token        string `json:"token"`
	GroupID      int64  `json:"group_id"`
	IconIncoming string `json:"icon_incoming"`
	IconOutgoing string `json:"icon_outgoing"`
	TimeoutSec   int    `json:"timeoutSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// MediaConfig holds media cache related configurations
type MediaConfig struct {
	CacheDir     string            `json:"cache_dir"`
	MaxSizeMB    MediaSizeLimits   `json:"maxSizeMB"`
	AllowedTypes MediaAllowedTypes `json:"allowedTypes"`
}

// MediaSizeLimits defines size limits for different media types in MB
type MediaSizeLimits struct {
	Image    int `json:"image"`
	Video    int `json:"video"`
	Document int `json:"document"`
	Voice    int `json:"voice"`
}

// MediaAllowedTypes defines allowed file extensions for different media types
type MediaAllowedTypes struct {
	Image    []string `json:"image"`
	Video    []string `json:"video"`
	Document []string `json:"document"`
	Voice    []string `json:"voice"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// DeliveryConfig holds delivery engine related configurations
type DeliveryConfig struct {
	Workers           int `json:"workers"`
	QueueSize         int `json:"queueSize"`
	MaxAttempts       int `json:"maxAttempts"`
	AttemptTimeoutSec int `json:"attemptTimeoutSec"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
