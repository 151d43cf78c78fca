package service

import (
	"context"
	"time"

	"wabridge/internal/models"
	"wabridge/internal/queue"
	"wabridge/pkg/telegram"
	"wabridge/pkg/whatsapp"
)

// Store is the persistence surface the relay needs.
type Store interface {
	GetOrCreateCustomer(ctx context.Context, channel, chatID string) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByTopic(ctx context.Context, topicID int64) (*models.Customer, error)
	SetCustomerTopic(ctx context.Context, customerID, topicID int64) error
	ClearCustomerTopic(ctx context.Context, customerID int64) error

	RecordOrigin(ctx context.Context, customerID int64, direction models.Direction, originID string) (*models.LedgerEntry, error)
	AttachDestination(ctx context.Context, entryID int64, destID string) error
	SaveChannelMessageRecord(ctx context.Context, entryID int64, waMessageID string) error
}

// TeamClient is the Bot API surface for the team-side group.
type TeamClient interface {
	SendMessage(ctx context.Context, chatID, topicID int64, text string) (*telegram.Message, error)
	SendLocation(ctx context.Context, chatID, topicID int64, latitude, longitude float64) (*telegram.Message, error)
	SendContact(ctx context.Context, chatID, topicID int64, phoneNumber, firstName string) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error)
	SendVideo(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error)
	SendDocument(ctx context.Context, chatID, topicID int64, filePath, caption string) (*telegram.Message, error)
	SendVoice(ctx context.Context, chatID, topicID int64, filePath string) (*telegram.Message, error)
	SendSticker(ctx context.Context, chatID, topicID int64, filePath string) (*telegram.Message, error)
	CreateForumTopic(ctx context.Context, chatID int64, name, iconCustomEmojiID string) (*telegram.ForumTopic, error)
	EditForumTopic(ctx context.Context, chatID, topicID int64, iconCustomEmojiID string) error
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	FileURL(filePath string) string
}

// ProviderRegistry resolves the active customer-channel provider.
type ProviderRegistry interface {
	Active() (whatsapp.Provider, error)
}

// MediaFetcher moves media through the local cache.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string, headers map[string]string) (string, error)
}

// Deduper admits each webhook event at most once.
type Deduper interface {
	Admit(ctx context.Context, channelTag, eventID string) bool
}

// Submitter enqueues delivery jobs.
type Submitter interface {
	Submit(job queue.Job) error
}

// TeamSettings is resolved from live config on each delivery.
type TeamSettings struct {
	GroupID      int64
	IconIncoming string
	IconOutgoing string
	Timeout      time.Duration
}
