package whatsapp

import (
	"context"
	"strings"
	"time"
)

// Outbound message kinds. These mirror the relay's message kinds for the
// subset a customer channel can receive.
const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindDocument = "document"
	KindAudio    = "audio"
	KindLocation = "location"
)

// Outbound is a message ready for delivery to a customer channel.
type Outbound struct {
	To        string
	Kind      string
	Text      string
	MediaPath string
	MediaID   string
	MimeType  string
	Caption   string
	Filename  string
	Latitude  float64
	Longitude float64
}

// DeliveryStatus classifies a send attempt.
type DeliveryStatus string

const (
	// StatusSent means the channel accepted the message.
	StatusSent DeliveryStatus = "sent"
	// StatusRejected means the channel refused the message permanently.
	// Retrying the same payload cannot succeed.
	StatusRejected DeliveryStatus = "rejected"
	// StatusTransportFailure means the attempt failed for reasons that may
	// clear up: timeouts, network errors, server errors, rate limits.
	StatusTransportFailure DeliveryStatus = "transport_failure"
)

// Rejection kinds the bridge knows cannot succeed on a retry. Providers
// normalize their channel's error vocabulary to these; a Rejected result
// carrying any other kind is still retried within the attempt bound.
const (
	RejectionInvalidRecipient = "invalid_recipient"
	RejectionRecipientBlocked = "recipient_blocked"
	RejectionInvalidPayload   = "invalid_payload"
)

// IsPermanentRejection reports whether a rejection kind is a recognized
// permanent one.
func IsPermanentRejection(errorType string) bool {
	switch errorType {
	case RejectionInvalidRecipient, RejectionRecipientBlocked, RejectionInvalidPayload:
		return true
	}
	return false
}

// DeliveryResult is the outcome of one send attempt.
type DeliveryResult struct {
	Status    DeliveryStatus
	MessageID string
	ErrorType string
	Message   string
}

func (r *DeliveryResult) Sent() bool {
	return r.Status == StatusSent
}

func (r *DeliveryResult) Rejected() bool {
	return r.Status == StatusRejected
}

// Provider sends messages into a customer channel. Implementations wrap one
// concrete WhatsApp transport.
type Provider interface {
	Name() string

	Send(ctx context.Context, msg *Outbound) (*DeliveryResult, error)

	// UploadMedia pushes a local file to the channel ahead of a send and
	// returns the media handle. Providers that accept inline media return
	// an empty handle and no error: absence of an upload step is not a
	// failure.
	UploadMedia(ctx context.Context, filePath, mimeType string) (string, error)

	MarkRead(ctx context.Context, messageID string) error

	// MediaURL resolves a media handle from an inbound event to a
	// downloadable URL.
	MediaURL(ctx context.Context, mediaID string) (string, error)

	// AuthHeaders are the request headers a media download from this
	// provider needs.
	AuthHeaders() map[string]string
}

// Settings carries the provider configuration the registry resolves from.
type Settings struct {
	Provider string
	Cloud    CloudSettings
	Waha     WahaSettings
	Timeout  time.Duration
}

type CloudSettings struct {
	Token         string
	PhoneNumberID string
	APIVersion    string
	VerifyToken   string
}

type WahaSettings struct {
	BaseURL   string
	APIKey    string
	BasicAuth string
	Session   string
}

// ExtractChatID pulls the chat ID out of a WAHA serialized message ID,
// formatted as "false_12345@c.us_ABCDEF". Unknown formats pass through.
func ExtractChatID(messageID string) string {
	parts := strings.Split(messageID, "_")
	if len(parts) >= 2 {
		return parts[1]
	}
	return messageID
}

// classifyStatus maps an HTTP response code to a delivery status. Rate limits
// and server errors are worth retrying; other client errors are final.
func classifyStatus(code int) DeliveryStatus {
	switch {
	case code >= 200 && code < 300:
		return StatusSent
	case code == 429 || code >= 500:
		return StatusTransportFailure
	default:
		return StatusRejected
	}
}
