package store

import (
	"database/sql"
	"fmt"
)

// TriState models an integer that is either unknown or a boolean,
// matching the -1/0/1 wire shape the firmware reports for charging and
// vbus_good while giving the Go side a real sum type to switch on.
type TriState int

// the three tri-state values
const (
	Unknown TriState = -1
	Off     TriState = 0
	On      TriState = 1
)

// Device is the durable projection of one photo frame's last-known
// state. It is upserted on first contact and never deleted by the core.
type Device struct {
	DeviceID            string
	LastCheckinEpoch    int64
	NextWakeupEpoch     int64
	SleepSeconds        int64
	PollIntervalSeconds int64
	FailureCount        int
	LastHTTPStatus      int
	FetchOK             bool
	ImageChanged        bool
	ImageSource         string
	LastError           string
	BatteryMV           int
	BatteryPercent      int
	Charging            TriState
	VbusGood            TriState
	ReportedConfigJSON  string
	ReportedConfigEpoch int64
	UpdatedAt           int64
}

// UpsertOnPoll records a device/next call: it touches the device row with
// the new failure count and updated_at, creating the row on first
// contact. Must be called with db.Lock held.
func (db *DB) UpsertOnPoll(deviceID string, now int64, failureCount int) error {
	if failureCount < 0 {
		failureCount = 0
	}
	_, err := db.Exec(`
		INSERT INTO device (device_id, updated_at, failure_count)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			updated_at = excluded.updated_at,
			failure_count = excluded.failure_count;
	`, deviceID, now, failureCount)
	if err != nil {
		return fmt.Errorf("upsert device on poll: %w", err)
	}
	return nil
}

// CheckinInput is the telemetry payload a device reports on check-in.
type CheckinInput struct {
	DeviceID            string
	CheckinEpoch        int64
	NextWakeupEpoch     int64
	SleepSeconds        int64
	PollIntervalSeconds int64
	FailureCount        int
	LastHTTPStatus      int
	FetchOK             bool
	ImageChanged        bool
	ImageSource         string
	LastError           string
	BatteryMV           int
	BatteryPercent      int
	Charging            TriState
	VbusGood            TriState
	ReportedConfigJSON  string
	ReportedConfigEpoch int64
}

// Checkin upserts full device telemetry, clamping out-of-range values
// rather than rejecting the whole report.
func (db *DB) Checkin(in CheckinInput) error {
	db.Lock()
	defer db.Unlock()

	pollInterval := in.PollIntervalSeconds
	if pollInterval < 60 {
		pollInterval = 60
	}
	failureCount := in.FailureCount
	if failureCount < 0 {
		failureCount = 0
	}
	sleepSeconds := in.SleepSeconds
	if sleepSeconds < 0 {
		sleepSeconds = 0
	}
	reportedConfigJSON := in.ReportedConfigJSON
	if reportedConfigJSON == "" {
		reportedConfigJSON = "{}"
	}

	_, err := db.Exec(`
		INSERT INTO device (
			device_id, last_checkin_epoch, next_wakeup_epoch, sleep_seconds,
			poll_interval_seconds, failure_count, last_http_status, fetch_ok,
			image_changed, image_source, last_error, battery_mv, battery_percent,
			charging, vbus_good, reported_config_json, reported_config_epoch, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			last_checkin_epoch = excluded.last_checkin_epoch,
			next_wakeup_epoch = excluded.next_wakeup_epoch,
			sleep_seconds = excluded.sleep_seconds,
			poll_interval_seconds = excluded.poll_interval_seconds,
			failure_count = excluded.failure_count,
			last_http_status = excluded.last_http_status,
			fetch_ok = excluded.fetch_ok,
			image_changed = excluded.image_changed,
			image_source = excluded.image_source,
			last_error = excluded.last_error,
			battery_mv = excluded.battery_mv,
			battery_percent = excluded.battery_percent,
			charging = excluded.charging,
			vbus_good = excluded.vbus_good,
			reported_config_json = excluded.reported_config_json,
			reported_config_epoch = excluded.reported_config_epoch,
			updated_at = excluded.updated_at;
	`,
		in.DeviceID, in.CheckinEpoch, in.NextWakeupEpoch, sleepSeconds,
		pollInterval, failureCount, in.LastHTTPStatus, boolToInt(in.FetchOK),
		boolToInt(in.ImageChanged), in.ImageSource, in.LastError, in.BatteryMV,
		in.BatteryPercent, int(in.Charging), int(in.VbusGood), reportedConfigJSON,
		in.ReportedConfigEpoch, in.CheckinEpoch,
	)
	if err != nil {
		return fmt.Errorf("checkin upsert: %w", err)
	}
	return nil
}

// NextWakeupEpoch returns the last next_wakeup_epoch the device reported,
// or 0 with ok=false if the device has never been seen.
func (db *DB) NextWakeupEpoch(deviceID string) (epoch int64, ok bool, err error) {
	row := db.QueryRow(`SELECT next_wakeup_epoch FROM device WHERE device_id = ?;`, deviceID)
	err = row.Scan(&epoch)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query next wakeup: %w", err)
	}
	return epoch, true, nil
}

// ListDevices returns every known device ordered the way the operator
// console wants it: soonest next_wakeup_epoch first, devices that have
// never reported one last, then by device_id.
func (db *DB) ListDevices() ([]Device, error) {
	rows, err := db.Query(`
		SELECT device_id, last_checkin_epoch, next_wakeup_epoch, sleep_seconds,
			poll_interval_seconds, failure_count, last_http_status, fetch_ok,
			image_changed, image_source, last_error, battery_mv, battery_percent,
			charging, vbus_good, reported_config_json, reported_config_epoch, updated_at
		FROM device
		ORDER BY CASE WHEN next_wakeup_epoch > 0 THEN next_wakeup_epoch ELSE 9223372036854775807 END,
			device_id ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var (
			d                   Device
			fetchOK, imgChanged int
			charging, vbus      int
		)
		if err := rows.Scan(
			&d.DeviceID, &d.LastCheckinEpoch, &d.NextWakeupEpoch, &d.SleepSeconds,
			&d.PollIntervalSeconds, &d.FailureCount, &d.LastHTTPStatus, &fetchOK,
			&imgChanged, &d.ImageSource, &d.LastError, &d.BatteryMV, &d.BatteryPercent,
			&charging, &vbus, &d.ReportedConfigJSON, &d.ReportedConfigEpoch, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.FetchOK = fetchOK != 0
		d.ImageChanged = imgChanged != 0
		d.Charging = TriState(charging)
		d.VbusGood = TriState(vbus)
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
