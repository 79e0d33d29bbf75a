package store

import (
	"database/sql"
	"fmt"
)

// WildcardDevice is the device_id value meaning "any device that has no
// more-specific matching row".
const WildcardDevice = "*"

// Override is one operator-scheduled time-bounded window during which a
// custom image replaces the daily default. Windows are fixed at
// creation; soft-deletion sets Enabled=false but preserves the row.
type Override struct {
	ID           int64
	DeviceID     string
	StartEpoch   int64
	EndEpoch     int64
	AssetName    string
	AssetSHA256  string
	Note         string
	CreatedEpoch int64
	Enabled      bool
}

// NewOverride is the input to CreateOverride.
type NewOverride struct {
	DeviceID     string
	StartEpoch   int64
	EndEpoch     int64
	AssetName    string
	AssetSHA256  string
	Note         string
	CreatedEpoch int64
}

// CreateOverride inserts a new override row. Must be called with
// db.Lock held by the caller when part of a larger cohesive operation;
// it is safe to call standalone too since it is a single statement.
func (db *DB) CreateOverride(in NewOverride) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO override (device_id, start_epoch, end_epoch, asset_name, asset_sha256, note, created_epoch, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1);
	`, in.DeviceID, in.StartEpoch, in.EndEpoch, in.AssetName, in.AssetSHA256, in.Note, in.CreatedEpoch)
	if err != nil {
		return 0, fmt.Errorf("create override: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create override: last insert id: %w", err)
	}
	return id, nil
}

// ActiveOverride returns the override in effect for deviceID at now, or
// ok=false if none applies. Device-specific rows win over wildcard rows;
// ties among equally-specific rows break toward the most recently
// created.
func (db *DB) ActiveOverride(deviceID string, now int64) (ov Override, ok bool, err error) {
	row := db.QueryRow(`
		SELECT id, device_id, start_epoch, end_epoch, asset_name, asset_sha256, note, created_epoch, enabled
		FROM override
		WHERE enabled = 1
			AND start_epoch <= ?
			AND end_epoch > ?
			AND (device_id = ? OR device_id = ?)
		ORDER BY CASE WHEN device_id = ? THEN 0 ELSE 1 END, created_epoch DESC, id DESC
		LIMIT 1;
	`, now, now, deviceID, WildcardDevice, deviceID)
	ov, found, err := scanOverride(row)
	if err != nil {
		return Override{}, false, fmt.Errorf("query active override: %w", err)
	}
	return ov, found, nil
}

// UpcomingOverride returns the nearest override that has not started yet
// for deviceID-or-wildcard, ordered ascending by start, or ok=false if
// none is scheduled.
func (db *DB) UpcomingOverride(deviceID string, now int64) (ov Override, ok bool, err error) {
	row := db.QueryRow(`
		SELECT id, device_id, start_epoch, end_epoch, asset_name, asset_sha256, note, created_epoch, enabled
		FROM override
		WHERE enabled = 1
			AND start_epoch > ?
			AND (device_id = ? OR device_id = ?)
		ORDER BY start_epoch ASC
		LIMIT 1;
	`, now, deviceID, WildcardDevice)
	ov, found, err := scanOverride(row)
	if err != nil {
		return Override{}, false, fmt.Errorf("query upcoming override: %w", err)
	}
	return ov, found, nil
}

// ListOverrides returns the newest 200 enabled overrides, newest first.
func (db *DB) ListOverrides() ([]Override, error) {
	rows, err := db.Query(`
		SELECT id, device_id, start_epoch, end_epoch, asset_name, asset_sha256, note, created_epoch, enabled
		FROM override
		WHERE enabled = 1
		ORDER BY start_epoch DESC, id DESC
		LIMIT 200;
	`)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var (
			ov      Override
			enabled int
		)
		if err := rows.Scan(&ov.ID, &ov.DeviceID, &ov.StartEpoch, &ov.EndEpoch, &ov.AssetName,
			&ov.AssetSHA256, &ov.Note, &ov.CreatedEpoch, &enabled); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		ov.Enabled = enabled != 0
		out = append(out, ov)
	}
	return out, rows.Err()
}

// DeleteOverride soft-deletes the override (enabled=0), preserving
// history. It returns ok=false if no such override exists.
func (db *DB) DeleteOverride(id int64) (ok bool, err error) {
	db.Lock()
	defer db.Unlock()

	res, err := db.Exec(`UPDATE override SET enabled = 0 WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete override: rows affected: %w", err)
	}
	return n > 0, nil
}

func scanOverride(row *sql.Row) (Override, bool, error) {
	var (
		ov      Override
		enabled int
	)
	err := row.Scan(&ov.ID, &ov.DeviceID, &ov.StartEpoch, &ov.EndEpoch, &ov.AssetName,
		&ov.AssetSHA256, &ov.Note, &ov.CreatedEpoch, &enabled)
	if err == sql.ErrNoRows {
		return Override{}, false, nil
	}
	if err != nil {
		return Override{}, false, err
	}
	ov.Enabled = enabled != 0
	return ov, true, nil
}
