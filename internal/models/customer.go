package models

import "time"

// Channel tags identify the id space a native identifier belongs to.
const (
	ChannelCloud    = "cloud"
	ChannelWaha     = "waha"
	ChannelTelegram = "telegram"
)

// Customer is the per-customer identity record all relay state keys off of.
// One row exists per (channel, chat address); it is created lazily on the
// first inbound event and never hard-deleted.
type Customer struct {
	ID        int64      `db:"id"`
	Channel   string     `db:"channel"`
	ChatID    string     `db:"chat_id"`
	TopicID   int64      `db:"topic_id"`
	Banned    bool       `db:"banned"`
	BannedAt  *time.Time `db:"banned_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// HasTopic reports whether a team-side topic currently exists for the
// customer. A zero topic id means no topic (or a topic known to be stale).
func (c *Customer) HasTopic() bool {
	return c.TopicID != 0
}

func (c *Customer) IsBanned() bool {
	return c.Banned
}
