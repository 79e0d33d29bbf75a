package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertOnPollCreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.UpsertOnPoll("frame-01", 1000, 0))
	devices, err := db.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "frame-01", devices[0].DeviceID)
	require.EqualValues(t, 1000, devices[0].UpdatedAt)
	require.Equal(t, 0, devices[0].FailureCount)

	require.NoError(t, db.UpsertOnPoll("frame-01", 2000, 3))
	devices, err = db.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.EqualValues(t, 2000, devices[0].UpdatedAt)
	require.Equal(t, 3, devices[0].FailureCount)
}

func TestUpsertOnPollNegativeFailureCountClampedToZero(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertOnPoll("frame-01", 1000, -5))
	devices, err := db.ListDevices()
	require.NoError(t, err)
	require.Equal(t, 0, devices[0].FailureCount)
}

func TestCheckinUpsertsFullTelemetry(t *testing.T) {
	db := newTestDB(t)

	err := db.Checkin(CheckinInput{
		DeviceID:            "frame-01",
		CheckinEpoch:        5000,
		NextWakeupEpoch:     5600,
		SleepSeconds:        600,
		PollIntervalSeconds: 30, // below floor, should clamp to 60
		FailureCount:        -1, // below floor, should clamp to 0
		LastHTTPStatus:      200,
		FetchOK:             true,
		ImageChanged:        true,
		ImageSource:         "daily",
		LastError:           "",
		BatteryMV:           3700,
		BatteryPercent:      80,
		Charging:            On,
		VbusGood:            Off,
		ReportedConfigJSON:  `{"interval_minutes":15}`,
		ReportedConfigEpoch: 5000,
	})
	require.NoError(t, err)

	devices, err := db.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	d := devices[0]
	require.EqualValues(t, 60, d.PollIntervalSeconds)
	require.Equal(t, 0, d.FailureCount)
	require.True(t, d.FetchOK)
	require.True(t, d.ImageChanged)
	require.Equal(t, On, d.Charging)
	require.Equal(t, Off, d.VbusGood)
	require.Equal(t, `{"interval_minutes":15}`, d.ReportedConfigJSON)

	wakeup, ok, err := db.NextWakeupEpoch("frame-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5600, wakeup)
}

func TestCheckinEmptyReportedConfigDefaultsToEmptyObject(t *testing.T) {
	db := newTestDB(t)
	err := db.Checkin(CheckinInput{
		DeviceID:            "frame-02",
		CheckinEpoch:        1,
		PollIntervalSeconds: 300,
	})
	require.NoError(t, err)

	devices, err := db.ListDevices()
	require.NoError(t, err)
	require.Equal(t, "{}", devices[0].ReportedConfigJSON)
}

func TestNextWakeupEpochUnknownDevice(t *testing.T) {
	db := newTestDB(t)
	_, ok, err := db.NextWakeupEpoch("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListDevicesOrdersBySoonestWakeupThenID(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Checkin(CheckinInput{DeviceID: "no-wakeup", CheckinEpoch: 1, PollIntervalSeconds: 300}))
	require.NoError(t, db.Checkin(CheckinInput{DeviceID: "later", CheckinEpoch: 1, NextWakeupEpoch: 2000, PollIntervalSeconds: 300}))
	require.NoError(t, db.Checkin(CheckinInput{DeviceID: "sooner", CheckinEpoch: 1, NextWakeupEpoch: 1000, PollIntervalSeconds: 300}))

	devices, err := db.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 3)
	require.Equal(t, "sooner", devices[0].DeviceID)
	require.Equal(t, "later", devices[1].DeviceID)
	require.Equal(t, "no-wakeup", devices[2].DeviceID)
}
