package database

import (
	"context"
	"fmt"
	"time"
)

// InsertDedupMarker claims a marker key for the given window. It returns true
// when this call won the claim, false when a live marker already exists.
// Expired markers are reclaimed in place rather than waiting for the purge.
func (d *Database) InsertDedupMarker(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	var claimed bool
	err := d.executeWithRetry(ctx, func() error {
		claimed = false

		query := `INSERT OR IGNORE INTO dedup_markers (marker_key, expires_at) VALUES (?, ?)`
		result, execErr := d.db.ExecContext(ctx, query, key, expiresAt)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if rows > 0 {
			claimed = true
			return nil
		}

		query = `UPDATE dedup_markers SET expires_at = ? WHERE marker_key = ? AND expires_at <= ?`
		result, execErr = d.db.ExecContext(ctx, query, expiresAt, key, time.Now().UTC())
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		claimed = rows > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert dedup marker: %w", err)
	}

	return claimed, nil
}

// PurgeExpiredDedupMarkers removes markers past their window.
func (d *Database) PurgeExpiredDedupMarkers(ctx context.Context) error {
	query := `DELETE FROM dedup_markers WHERE expires_at <= ?`
	err := d.executeWithRetry(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, query, time.Now().UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to purge dedup markers: %w", err)
	}
	return nil
}
