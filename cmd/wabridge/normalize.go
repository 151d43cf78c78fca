package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"wabridge/internal/models"
)

// Cloud API webhook payload, trimmed to the fields the relay consumes.
type cloudWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []cloudMessage `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type cloudMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *cloudMedia `json:"image"`
	Video    *cloudMedia `json:"video"`
	Document *cloudMedia `json:"document"`
	Audio    *cloudMedia `json:"audio"`
	Voice    *cloudMedia `json:"voice"`
	Sticker  *cloudMedia `json:"sticker"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
		Phones []struct {
			Phone string `json:"phone"`
		} `json:"phones"`
	} `json:"contacts"`
	Reaction *struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	} `json:"reaction"`
}

type cloudMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// normalizeCloudPayload flattens one Cloud API webhook delivery into
// normalized updates. Status notifications are folded into KindStatus
// updates so the relay can account for the drop.
func normalizeCloudPayload(body []byte) ([]*models.ChannelUpdate, error) {
	var payload cloudWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cloud payload: %w", err)
	}

	var updates []*models.ChannelUpdate
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				update := normalizeCloudMessage(msg)
				update.Raw = json.RawMessage(body)
				updates = append(updates, update)
			}
			for _, status := range change.Value.Statuses {
				updates = append(updates, &models.ChannelUpdate{
					EventID: status.ID + "_" + status.Status,
					Channel: models.ChannelCloud,
					Kind:    models.KindStatus,
				})
			}
		}
	}
	return updates, nil
}

func normalizeCloudMessage(msg cloudMessage) *models.ChannelUpdate {
	update := &models.ChannelUpdate{
		EventID: msg.ID,
		Channel: models.ChannelCloud,
		From:    msg.From,
	}

	attach := func(kind models.MessageKind, media *cloudMedia) {
		update.Kind = kind
		update.MediaID = media.ID
		update.MimeType = media.MimeType
		update.Filename = media.Filename
		update.Caption = media.Caption
	}

	switch msg.Type {
	case "text":
		update.Kind = models.KindText
		if msg.Text != nil {
			update.Text = msg.Text.Body
		}
	case "image":
		attach(models.KindImage, msg.Image)
	case "video":
		attach(models.KindVideo, msg.Video)
	case "document":
		attach(models.KindDocument, msg.Document)
	case "audio":
		attach(models.KindAudio, msg.Audio)
	case "voice":
		attach(models.KindAudio, msg.Voice)
	case "sticker":
		attach(models.KindSticker, msg.Sticker)
	case "location":
		update.Kind = models.KindLocation
		if msg.Location != nil {
			update.Location = &models.Location{
				Latitude:  msg.Location.Latitude,
				Longitude: msg.Location.Longitude,
			}
		}
	case "contacts":
		update.Kind = models.KindContact
		if len(msg.Contacts) > 0 {
			card := &models.ContactCard{Name: msg.Contacts[0].Name.FormattedName}
			if len(msg.Contacts[0].Phones) > 0 {
				card.Phone = msg.Contacts[0].Phones[0].Phone
			}
			update.Contact = card
		}
	case "reaction":
		update.Kind = models.KindReaction
	default:
		update.Kind = models.KindUnknown
	}

	return update
}

// WAHA webhook payload, trimmed likewise.
type wahaWebhook struct {
	Event   string `json:"event"`
	Session string `json:"session"`
	Payload struct {
		ID       string  `json:"id"`
		From     string  `json:"from"`
		FromMe   bool    `json:"fromMe"`
		Body     string  `json:"body"`
		HasMedia bool    `json:"hasMedia"`
		Media    *struct {
			URL      string `json:"url"`
			MimeType string `json:"mimetype"`
			Filename string `json:"filename"`
		} `json:"media"`
		Location *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		VCards []string `json:"vCards"`
	} `json:"payload"`
}

// normalizeWahaPayload returns nil for deliveries that carry nothing to
// relay: non-message events and the gateway echoing our own sends back.
func normalizeWahaPayload(body []byte) (*models.ChannelUpdate, error) {
	var payload wahaWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode waha payload: %w", err)
	}

	if payload.Event != "message" || payload.Payload.FromMe {
		return nil, nil
	}

	update := &models.ChannelUpdate{
		EventID: payload.Payload.ID,
		Channel: models.ChannelWaha,
		From:    payload.Payload.From,
		Raw:     json.RawMessage(body),
	}

	switch {
	case payload.Payload.Location != nil:
		update.Kind = models.KindLocation
		update.Location = &models.Location{
			Latitude:  payload.Payload.Location.Latitude,
			Longitude: payload.Payload.Location.Longitude,
		}
	case len(payload.Payload.VCards) > 0:
		update.Kind = models.KindContact
		update.Contact = parseVCard(payload.Payload.VCards[0])
	case payload.Payload.HasMedia && payload.Payload.Media != nil:
		update.Kind = wahaMediaKind(payload.Payload.Media.MimeType)
		update.MediaID = payload.Payload.Media.URL
		update.MimeType = payload.Payload.Media.MimeType
		update.Filename = payload.Payload.Media.Filename
		update.Caption = payload.Payload.Body
	default:
		update.Kind = models.KindText
		update.Text = payload.Payload.Body
	}

	return update, nil
}

func wahaMediaKind(mimeType string) models.MessageKind {
	switch {
	case strings.HasPrefix(mimeType, "image/webp"):
		return models.KindSticker
	case strings.HasPrefix(mimeType, "image/"):
		return models.KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return models.KindAudio
	default:
		return models.KindDocument
	}
}

// parseVCard pulls name and first phone number out of a vCard blob. WAHA
// ships contacts as raw vCard text.
func parseVCard(raw string) *models.ContactCard {
	card := &models.ContactCard{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "FN:"):
			card.Name = strings.TrimPrefix(line, "FN:")
		case strings.HasPrefix(line, "TEL") && card.Phone == "":
			if _, value, found := strings.Cut(line, ":"); found {
				card.Phone = value
			}
		}
	}
	return card
}

// Telegram Bot API update, trimmed to forum-group messages.
type telegramUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramMessage struct {
	MessageID       int64 `json:"message_id"`
	MessageThreadID int64 `json:"message_thread_id"`
	From            *struct {
		IsBot bool `json:"is_bot"`
	} `json:"from"`
	Text     string `json:"text"`
	Caption  string `json:"caption"`
	Photo    []struct {
		FileID   string `json:"file_id"`
		FileSize int64  `json:"file_size"`
	} `json:"photo"`
	Video *struct {
		FileID string `json:"file_id"`
	} `json:"video"`
	Document *struct {
		FileID   string `json:"file_id"`
		FileName string `json:"file_name"`
	} `json:"document"`
	Voice *struct {
		FileID string `json:"file_id"`
	} `json:"voice"`
	Audio *struct {
		FileID   string `json:"file_id"`
		FileName string `json:"file_name"`
	} `json:"audio"`
	Sticker *struct {
		FileID string `json:"file_id"`
		Emoji  string `json:"emoji"`
	} `json:"sticker"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Contact *struct {
		PhoneNumber string `json:"phone_number"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
	} `json:"contact"`
}

// normalizeTelegramPayload returns nil for updates that are not team group
// messages. Bot messages are skipped so the bridge never relays its own
// posts back out.
func normalizeTelegramPayload(r io.Reader) (*models.TeamPost, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram update: %w", err)
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("failed to decode telegram update: %w", err)
	}

	msg := update.Message
	edited := false
	if msg == nil {
		msg = update.EditedMessage
		edited = true
	}
	if msg == nil {
		return nil, nil
	}
	if msg.From != nil && msg.From.IsBot {
		return nil, nil
	}

	post := &models.TeamPost{
		MessageID: msg.MessageID,
		TopicID:   msg.MessageThreadID,
		Edited:    edited,
		Caption:   msg.Caption,
		Raw:       json.RawMessage(body),
	}

	switch {
	case msg.Sticker != nil:
		post.Kind = models.KindSticker
		post.FileID = msg.Sticker.FileID
		post.Emoji = msg.Sticker.Emoji
	case len(msg.Photo) > 0:
		post.Kind = models.KindImage
		// The Bot API lists photo sizes smallest first.
		post.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		post.Kind = models.KindVideo
		post.FileID = msg.Video.FileID
	case msg.Document != nil:
		post.Kind = models.KindDocument
		post.FileID = msg.Document.FileID
		post.Filename = msg.Document.FileName
	case msg.Voice != nil:
		post.Kind = models.KindAudio
		post.FileID = msg.Voice.FileID
	case msg.Audio != nil:
		post.Kind = models.KindAudio
		post.FileID = msg.Audio.FileID
		post.Filename = msg.Audio.FileName
	case msg.Location != nil:
		post.Kind = models.KindLocation
		post.Location = &models.Location{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case msg.Contact != nil:
		post.Kind = models.KindContact
		name := strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
		post.Contact = &models.ContactCard{Name: name, Phone: msg.Contact.PhoneNumber}
	case msg.Text != "":
		post.Kind = models.KindText
		post.Text = msg.Text
	default:
		post.Kind = models.KindUnknown
	}

	return post, nil
}
