package models

import "encoding/json"

// MessageKind tags the payload variant carried by an update or post.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindAudio    MessageKind = "audio"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindContact  MessageKind = "contacts"
	KindReaction MessageKind = "reaction"
	KindStatus   MessageKind = "status"
	KindUnknown  MessageKind = "unknown"
)

// Location is a shared latitude/longitude payload.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContactCard is the normalized shared-contact payload.
type ContactCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ChannelUpdate is a normalized inbound event from a customer channel,
// produced by the webhook normalizer. EventID and From are native to the
// channel's own id space.
type ChannelUpdate struct {
	EventID  string          `json:"event_id"`
	Channel  string          `json:"channel"`
	From     string          `json:"from"`
	Kind     MessageKind     `json:"kind"`
	Text     string          `json:"text,omitempty"`
	MediaID  string          `json:"media_id,omitempty"`
	MimeType string          `json:"mime_type,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Caption  string          `json:"caption,omitempty"`
	Location *Location       `json:"location,omitempty"`
	Contact  *ContactCard    `json:"contact,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// TeamPost is a normalized team-side reply posted inside a customer's topic.
type TeamPost struct {
	MessageID int64           `json:"message_id"`
	TopicID   int64           `json:"topic_id"`
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text,omitempty"`
	FileID    string          `json:"file_id,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Caption   string          `json:"caption,omitempty"`
	Location  *Location       `json:"location,omitempty"`
	Contact   *ContactCard    `json:"contact,omitempty"`
	Emoji     string          `json:"emoji,omitempty"`
	Edited    bool            `json:"edited,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}
