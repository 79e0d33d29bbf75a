package store

import (
	"database/sql"
	"fmt"
)

// ConfigPlanRetentionPerDevice is the per-device_id cap on
// device_config_plan rows.
const ConfigPlanRetentionPerDevice = 200

// ConfigPlan is a versioned target configuration authored by the
// operator. Its ID is the plan's version number.
type ConfigPlan struct {
	ID           int64
	DeviceID     string
	ConfigJSON   string
	Note         string
	CreatedEpoch int64
}

// CreateConfigPlan inserts a new plan; its row id is the new version.
// The per-device_id row count is trimmed to ConfigPlanRetentionPerDevice
// in the same call.
func (db *DB) CreateConfigPlan(deviceID, configJSON, note string, createdEpoch int64) (int64, error) {
	db.Lock()
	defer db.Unlock()

	res, err := db.Exec(`
		INSERT INTO device_config_plan (device_id, config_json, note, created_epoch)
		VALUES (?, ?, ?, ?);
	`, deviceID, configJSON, note, createdEpoch)
	if err != nil {
		return 0, fmt.Errorf("create config plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create config plan: last insert id: %w", err)
	}

	_, err = db.Exec(`
		DELETE FROM device_config_plan
		WHERE device_id = ? AND id NOT IN (
			SELECT id FROM device_config_plan WHERE device_id = ? ORDER BY id DESC LIMIT ?
		);
	`, deviceID, deviceID, ConfigPlanRetentionPerDevice)
	if err != nil {
		return 0, fmt.Errorf("trim config plans: %w", err)
	}
	return id, nil
}

// ResolvePlan returns the newest plan (by created_epoch) that targets
// deviceID or the wildcard, preferring an exact deviceID match over the
// wildcard at equal recency. ok=false if no plan applies.
func (db *DB) ResolvePlan(deviceID string) (plan ConfigPlan, ok bool, err error) {
	row := db.QueryRow(`
		SELECT id, device_id, config_json, note, created_epoch
		FROM device_config_plan
		WHERE device_id = ? OR device_id = ?
		ORDER BY created_epoch DESC, CASE WHEN device_id = ? THEN 0 ELSE 1 END, id DESC
		LIMIT 1;
	`, deviceID, WildcardDevice, deviceID)

	err = row.Scan(&plan.ID, &plan.DeviceID, &plan.ConfigJSON, &plan.Note, &plan.CreatedEpoch)
	if err == sql.ErrNoRows {
		return ConfigPlan{}, false, nil
	}
	if err != nil {
		return ConfigPlan{}, false, fmt.Errorf("resolve plan: %w", err)
	}
	return plan, true, nil
}

// ListConfigPlans returns the newest `limit` plans across all devices,
// newest first. A limit <= 0 defaults to 200.
func (db *DB) ListConfigPlans(limit int) ([]ConfigPlan, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, device_id, config_json, note, created_epoch
		FROM device_config_plan
		ORDER BY id DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list config plans: %w", err)
	}
	defer rows.Close()

	var out []ConfigPlan
	for rows.Next() {
		var p ConfigPlan
		if err := rows.Scan(&p.ID, &p.DeviceID, &p.ConfigJSON, &p.Note, &p.CreatedEpoch); err != nil {
			return nil, fmt.Errorf("scan config plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ConfigStatus is the per-device projection of config query/apply state.
type ConfigStatus struct {
	DeviceID        string
	LastQueryEpoch  int64
	LastSeenVersion int64
	TargetVersion   int64
	LastApplyEpoch  int64
	AppliedVersion  int64
	ApplyOK         bool
	ApplyError      string
}

// RecordConfigQuery upserts the status row after a device GET
// device/config call.
func (db *DB) RecordConfigQuery(deviceID string, now, lastSeenVersion, targetVersion int64) error {
	db.Lock()
	defer db.Unlock()

	_, err := db.Exec(`
		INSERT INTO device_config_status (device_id, last_query_epoch, last_seen_version, target_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			last_query_epoch = excluded.last_query_epoch,
			last_seen_version = excluded.last_seen_version,
			target_version = excluded.target_version;
	`, deviceID, now, lastSeenVersion, targetVersion)
	if err != nil {
		return fmt.Errorf("record config query: %w", err)
	}
	return nil
}

// RecordConfigApplied upserts the status row after a device POST
// device/config/applied call. applyError is truncated to 512 chars.
func (db *DB) RecordConfigApplied(deviceID string, appliedEpoch, appliedVersion int64, applyOK bool, applyError string) error {
	db.Lock()
	defer db.Unlock()

	if len(applyError) > 512 {
		applyError = applyError[:512]
	}

	_, err := db.Exec(`
		INSERT INTO device_config_status (device_id, last_apply_epoch, applied_version, apply_ok, apply_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			last_apply_epoch = excluded.last_apply_epoch,
			applied_version = excluded.applied_version,
			apply_ok = excluded.apply_ok,
			apply_error = excluded.apply_error;
	`, deviceID, appliedEpoch, appliedVersion, boolToInt(applyOK), applyError)
	if err != nil {
		return fmt.Errorf("record config applied: %w", err)
	}
	return nil
}

// ConfigStatusFor returns the status row for deviceID, or the zero value
// with ok=false if the device has never queried or applied a config.
func (db *DB) ConfigStatusFor(deviceID string) (status ConfigStatus, ok bool, err error) {
	row := db.QueryRow(`
		SELECT device_id, last_query_epoch, last_seen_version, target_version,
			last_apply_epoch, applied_version, apply_ok, apply_error
		FROM device_config_status WHERE device_id = ?;
	`, deviceID)
	var applyOK int
	err = row.Scan(&status.DeviceID, &status.LastQueryEpoch, &status.LastSeenVersion,
		&status.TargetVersion, &status.LastApplyEpoch, &status.AppliedVersion, &applyOK, &status.ApplyError)
	if err == sql.ErrNoRows {
		return ConfigStatus{}, false, nil
	}
	if err != nil {
		return ConfigStatus{}, false, fmt.Errorf("config status for: %w", err)
	}
	status.ApplyOK = applyOK != 0
	return status, true, nil
}

// ConfigStatusAll returns every status row, keyed by device_id.
func (db *DB) ConfigStatusAll() (map[string]ConfigStatus, error) {
	rows, err := db.Query(`
		SELECT device_id, last_query_epoch, last_seen_version, target_version,
			last_apply_epoch, applied_version, apply_ok, apply_error
		FROM device_config_status;
	`)
	if err != nil {
		return nil, fmt.Errorf("config status all: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ConfigStatus)
	for rows.Next() {
		var s ConfigStatus
		var applyOK int
		if err := rows.Scan(&s.DeviceID, &s.LastQueryEpoch, &s.LastSeenVersion,
			&s.TargetVersion, &s.LastApplyEpoch, &s.AppliedVersion, &applyOK, &s.ApplyError); err != nil {
			return nil, fmt.Errorf("scan config status: %w", err)
		}
		s.ApplyOK = applyOK != 0
		out[s.DeviceID] = s
	}
	return out, rows.Err()
}
