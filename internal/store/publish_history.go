package store

import "fmt"

// PublishHistoryRetention is the global cap on publish_history rows;
// older rows are trimmed in the same transaction that inserts.
const PublishHistoryRetention = 5000

// PublishHistoryEntry is one device/next decision.
type PublishHistoryEntry struct {
	ID               int64  `json:"id"`
	DeviceID         string `json:"device_id"`
	IssuedEpoch      int64  `json:"issued_epoch"`
	Source           string `json:"source"`
	ImageURL         string `json:"image_url"`
	OverrideID       *int64 `json:"override_id,omitempty"`
	PollAfterSeconds int64  `json:"poll_after_seconds"`
	ValidUntilEpoch  int64  `json:"valid_until_epoch"`
}

// AppendPublishHistory inserts one publish_history row and trims the
// table back to PublishHistoryRetention rows, in one transaction. Must be
// invoked with db.Lock held as part of the device/next cohesive
// transaction.
func (db *DB) AppendPublishHistory(e PublishHistoryEntry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin publish history: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO publish_history (device_id, issued_epoch, source, image_url, override_id, poll_after_seconds, valid_until_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, e.DeviceID, e.IssuedEpoch, e.Source, e.ImageURL, e.OverrideID, e.PollAfterSeconds, e.ValidUntilEpoch)
	if err != nil {
		return fmt.Errorf("insert publish history: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM publish_history
		WHERE id NOT IN (SELECT id FROM publish_history ORDER BY id DESC LIMIT ?);
	`, PublishHistoryRetention)
	if err != nil {
		return fmt.Errorf("trim publish history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish history: %w", err)
	}
	return nil
}

// ListPublishHistory returns the newest `limit` publish_history rows,
// newest first. A limit <= 0 defaults to 200.
func (db *DB) ListPublishHistory(limit int) ([]PublishHistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, device_id, issued_epoch, source, image_url, override_id, poll_after_seconds, valid_until_epoch
		FROM publish_history
		ORDER BY id DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list publish history: %w", err)
	}
	defer rows.Close()

	var out []PublishHistoryEntry
	for rows.Next() {
		var e PublishHistoryEntry
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.IssuedEpoch, &e.Source, &e.ImageURL,
			&e.OverrideID, &e.PollAfterSeconds, &e.ValidUntilEpoch); err != nil {
			return nil, fmt.Errorf("scan publish history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
