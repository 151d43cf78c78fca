package database

import (
	"context"
	"database/sql"
	"fmt"

	"wabridge/internal/models"
)

// GetOrCreateCustomer returns the customer identified by (channel, chatID),
// creating the row lazily on first contact. Creation races resolve through
// the unique constraint: the loser re-reads the winner's row.
func (d *Database) GetOrCreateCustomer(ctx context.Context, channel, chatID string) (*models.Customer, error) {
	customer, err := d.GetCustomer(ctx, channel, chatID)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	encChatID, err := d.encryptor.EncryptForLookupIfEnabled(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	query := `INSERT OR IGNORE INTO customers (channel, chat_id) VALUES (?, ?)`
	err = d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, channel, encChatID)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	customer, err = d.GetCustomer(ctx, channel, chatID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer missing after insert")
	}
	return customer, nil
}

// GetCustomer returns nil without error when no row exists.
func (d *Database) GetCustomer(ctx context.Context, channel, chatID string) (*models.Customer, error) {
	encChatID, err := d.encryptor.EncryptForLookupIfEnabled(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	query := `
		SELECT id, channel, chat_id, topic_id, banned, banned_at, created_at, updated_at
		FROM customers WHERE channel = ? AND chat_id = ?
	`

	return d.scanCustomer(d.db.QueryRowContext(ctx, query, channel, encChatID))
}

// GetCustomerByTopic resolves which customer a team-side thread belongs to.
func (d *Database) GetCustomerByTopic(ctx context.Context, topicID int64) (*models.Customer, error) {
	query := `
		SELECT id, channel, chat_id, topic_id, banned, banned_at, created_at, updated_at
		FROM customers WHERE topic_id = ?
	`

	return d.scanCustomer(d.db.QueryRowContext(ctx, query, topicID))
}

func (d *Database) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	query := `
		SELECT id, channel, chat_id, topic_id, banned, banned_at, created_at, updated_at
		FROM customers WHERE id = ?
	`

	return d.scanCustomer(d.db.QueryRowContext(ctx, query, id))
}

// SetCustomerTopic binds a customer to a newly created team-side thread.
func (d *Database) SetCustomerTopic(ctx context.Context, customerID, topicID int64) error {
	query := `UPDATE customers SET topic_id = ? WHERE id = ?`
	err := d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, topicID, customerID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to set customer topic: %w", err)
	}
	return nil
}

// ClearCustomerTopic drops a stale thread binding so the next delivery
// provisions a fresh one.
func (d *Database) ClearCustomerTopic(ctx context.Context, customerID int64) error {
	query := `UPDATE customers SET topic_id = NULL WHERE id = ?`
	err := d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, customerID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to clear customer topic: %w", err)
	}
	return nil
}

func (d *Database) SetCustomerBanned(ctx context.Context, customerID int64, banned bool) error {
	var query string
	if banned {
		query = `UPDATE customers SET banned = TRUE, banned_at = CURRENT_TIMESTAMP WHERE id = ?`
	} else {
		query = `UPDATE customers SET banned = FALSE, banned_at = NULL WHERE id = ?`
	}

	err := d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, customerID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update ban state: %w", err)
	}
	return nil
}

func (d *Database) scanCustomer(row *sql.Row) (*models.Customer, error) {
	var customer models.Customer
	var encChatID string
	var topicID sql.NullInt64
	var bannedAt sql.NullTime

	err := row.Scan(
		&customer.ID,
		&customer.Channel,
		&encChatID,
		&topicID,
		&customer.Banned,
		&bannedAt,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	chatID, err := d.encryptor.DecryptIfEnabled(encChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt chat ID: %w", err)
	}
	customer.ChatID = chatID

	if topicID.Valid {
		customer.TopicID = topicID.Int64
	}
	if bannedAt.Valid {
		t := bannedAt.Time.UTC()
		customer.BannedAt = &t
	}

	return &customer, nil
}
