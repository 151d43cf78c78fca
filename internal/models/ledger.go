package models

import "time"

// Direction of a relayed message relative to the team workspace.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// LedgerEntry links the two native message identifiers that represent the
// same logical message. The destination id stays NULL while the send is in
// flight; callers must treat a nil destination as pending, never as failed.
type LedgerEntry struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	Direction  Direction `db:"direction"`
	OriginID   string    `db:"origin_msg_id"`
	DestID     *string   `db:"dest_msg_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Pending reports whether the destination send has not completed yet.
func (e *LedgerEntry) Pending() bool {
	return e.DestID == nil
}

// ChannelMessageRecord is the per-channel extension of a native message id,
// joined 1:1 to a ledger entry so the channel's id format never leaks into
// the cross-channel ledger schema.
type ChannelMessageRecord struct {
	ID          int64     `db:"id"`
	EntryID     int64     `db:"entry_id"`
	WAMessageID string    `db:"wa_message_id"`
	CreatedAt   time.Time `db:"created_at"`
}
