package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wabridge/internal/models"
)

// ErrDuplicateOrigin reports that an origin message was already recorded.
// Callers treat this as success: the relay has seen the message before and
// must not deliver it twice.
var ErrDuplicateOrigin = errors.New("origin message already recorded")

// RecordOrigin creates a ledger entry for a message as it enters the relay.
// The (customer, direction, origin) triple is unique; a conflict means a
// concurrent or repeated intake already claimed the message.
func (d *Database) RecordOrigin(ctx context.Context, customerID int64, direction models.Direction, originID string) (*models.LedgerEntry, error) {
	encOriginID, err := d.encryptor.EncryptForLookupIfEnabled(originID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt origin ID: %w", err)
	}

	query := `INSERT INTO ledger_entries (customer_id, direction, origin_msg_id) VALUES (?, ?, ?)`

	var entryID int64
	err = d.executeWithRetry(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, query, customerID, string(direction), encOriginID)
		if execErr != nil {
			return execErr
		}
		entryID, execErr = result.LastInsertId()
		return execErr
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateOrigin
		}
		return nil, fmt.Errorf("failed to record origin: %w", err)
	}

	return &models.LedgerEntry{
		ID:         entryID,
		CustomerID: customerID,
		Direction:  direction,
		OriginID:   originID,
	}, nil
}

// AttachDestination records the counterpart message ID produced by a
// successful delivery. First write wins: once a destination is attached,
// later attempts are no-ops so retried deliveries cannot overwrite it.
func (d *Database) AttachDestination(ctx context.Context, entryID int64, destID string) error {
	encDestID, err := d.encryptor.EncryptForLookupIfEnabled(destID)
	if err != nil {
		return fmt.Errorf("failed to encrypt destination ID: %w", err)
	}

	query := `UPDATE ledger_entries SET dest_msg_id = ? WHERE id = ? AND dest_msg_id IS NULL`
	err = d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, encDestID, entryID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to attach destination: %w", err)
	}
	return nil
}

// ResolveCounterpart maps a message ID from either side of the bridge to its
// ledger entry. It checks origin IDs first, then destination IDs. Returns nil
// without error when the message is unknown.
func (d *Database) ResolveCounterpart(ctx context.Context, msgID string) (*models.LedgerEntry, error) {
	encMsgID, err := d.encryptor.EncryptForLookupIfEnabled(msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message ID: %w", err)
	}

	query := `
		SELECT id, customer_id, direction, origin_msg_id, dest_msg_id, created_at
		FROM ledger_entries WHERE origin_msg_id = ?
	`
	entry, err := d.scanLedgerEntry(d.db.QueryRowContext(ctx, query, encMsgID))
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	query = `
		SELECT id, customer_id, direction, origin_msg_id, dest_msg_id, created_at
		FROM ledger_entries WHERE dest_msg_id = ?
	`
	return d.scanLedgerEntry(d.db.QueryRowContext(ctx, query, encMsgID))
}

// SaveChannelMessageRecord keeps the raw customer-channel message ID alongside
// a ledger entry for later lookups like read receipts.
func (d *Database) SaveChannelMessageRecord(ctx context.Context, entryID int64, waMessageID string) error {
	encWAMessageID, err := d.encryptor.EncryptForLookupIfEnabled(waMessageID)
	if err != nil {
		return fmt.Errorf("failed to encrypt message ID: %w", err)
	}

	query := `INSERT OR IGNORE INTO whatsapp_messages (entry_id, wa_message_id) VALUES (?, ?)`
	err = d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, entryID, encWAMessageID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to save channel message record: %w", err)
	}
	return nil
}

// GetChannelMessageID returns the customer-channel message ID associated with
// a ledger entry, or empty when none was recorded.
func (d *Database) GetChannelMessageID(ctx context.Context, entryID int64) (string, error) {
	query := `SELECT wa_message_id FROM whatsapp_messages WHERE entry_id = ?`

	var encWAMessageID string
	err := d.db.QueryRowContext(ctx, query, entryID).Scan(&encWAMessageID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get channel message ID: %w", err)
	}

	waMessageID, err := d.encryptor.DecryptIfEnabled(encWAMessageID)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt message ID: %w", err)
	}
	return waMessageID, nil
}

func (d *Database) scanLedgerEntry(row *sql.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var direction string
	var encOriginID string
	var encDestID sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.CustomerID,
		&direction,
		&encOriginID,
		&encDestID,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	entry.Direction = models.Direction(direction)

	originID, err := d.encryptor.DecryptIfEnabled(encOriginID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt origin ID: %w", err)
	}
	entry.OriginID = originID

	if encDestID.Valid {
		destID, err := d.encryptor.DecryptIfEnabled(encDestID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt destination ID: %w", err)
		}
		entry.DestID = &destID
	}

	return &entry, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
