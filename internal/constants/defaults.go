package constants

// Relay pipeline defaults
const (
	DedupWindowSec           = 600
	DefaultDeliveryAttempts  = 5
	DefaultAttemptTimeoutSec = 20
	DefaultWorkerCount       = 8
	DefaultJobQueueSize      = 256
)

// Retry/backoff defaults
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultDatabaseRetryAttempts = 3
)

// Server defaults
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Client defaults
const (
	DefaultHTTPTimeoutSec          = 30
	DefaultCloudAPIVersion         = "v21.0"
	DefaultWahaSession             = "default"
	DefaultMediaDownloadTimeoutSec = 30
)

// Media defaults
const (
	BytesPerMegabyte         = 1024 * 1024
	DefaultMaxImageSizeMB    = 5
	DefaultMaxVideoSizeMB    = 100
	DefaultMaxDocumentSizeMB = 100
	DefaultMaxVoiceSizeMB    = 16
	MimeDetectionBufferSize  = 512
	DefaultRetentionDays     = 30
)

// File permission defaults
const (
	DefaultFilePermissions      = 0600
	DefaultDirectoryPermissions = 0750
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// Media file type defaults
var (
	DefaultImageTypes    = []string{"jpg", "jpeg", "png", "gif", "webp"}
	DefaultVideoTypes    = []string{"mp4", "mov", "3gp"}
	DefaultDocumentTypes = []string{"pdf", "doc", "docx", "xlsx"}
	DefaultVoiceTypes    = []string{"ogg", "opus", "mp3", "aac"}
)
