package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCreateOverride(t *testing.T, db *DB, deviceID string, start, end int64, asset string) int64 {
	t.Helper()
	id, err := db.CreateOverride(NewOverride{
		DeviceID:     deviceID,
		StartEpoch:   start,
		EndEpoch:     end,
		AssetName:    asset,
		AssetSHA256:  asset,
		CreatedEpoch: start,
	})
	require.NoError(t, err)
	return id
}

func TestActiveOverrideDeviceSpecificWinsOverWildcard(t *testing.T) {
	db := newTestDB(t)
	mustCreateOverride(t, db, WildcardDevice, 1000, 2000, "wild.bmp")
	mustCreateOverride(t, db, "frame-01", 1500, 1800, "specific.bmp")

	ov, ok, err := db.ActiveOverride("frame-01", 1600)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "specific.bmp", ov.AssetName)

	// a different device still sees the wildcard
	ov, ok, err = db.ActiveOverride("frame-02", 1600)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "wild.bmp", ov.AssetName)
}

func TestActiveOverrideTiesBreakTowardMostRecentlyCreated(t *testing.T) {
	db := newTestDB(t)
	mustCreateOverride(t, db, "frame-01", 1000, 2000, "first.bmp")
	mustCreateOverride(t, db, "frame-01", 1000, 2000, "second.bmp")

	ov, ok, err := db.ActiveOverride("frame-01", 1500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second.bmp", ov.AssetName)
}

func TestActiveOverrideHalfOpenWindow(t *testing.T) {
	db := newTestDB(t)
	mustCreateOverride(t, db, "frame-01", 1000, 2000, "a.bmp")

	_, ok, err := db.ActiveOverride("frame-01", 999)
	require.NoError(t, err)
	require.False(t, ok, "window has not started yet")

	_, ok, err = db.ActiveOverride("frame-01", 1000)
	require.NoError(t, err)
	require.True(t, ok, "start is inclusive")

	_, ok, err = db.ActiveOverride("frame-01", 2000)
	require.NoError(t, err)
	require.False(t, ok, "end is exclusive")
}

func TestUpcomingOverrideNearestFirst(t *testing.T) {
	db := newTestDB(t)
	mustCreateOverride(t, db, "frame-01", 5000, 6000, "far.bmp")
	mustCreateOverride(t, db, "frame-01", 3000, 4000, "near.bmp")

	ov, ok, err := db.UpcomingOverride("frame-01", 1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "near.bmp", ov.AssetName)
}

func TestDeleteOverrideSoftDeletesAndExcludesFromQueries(t *testing.T) {
	db := newTestDB(t)
	id := mustCreateOverride(t, db, "frame-01", 1000, 2000, "a.bmp")

	ok, err := db.DeleteOverride(id)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = db.ActiveOverride("frame-01", 1500)
	require.NoError(t, err)
	require.False(t, ok)

	overrides, err := db.ListOverrides()
	require.NoError(t, err)
	require.Empty(t, overrides)
}

func TestDeleteOverrideUnknownID(t *testing.T) {
	db := newTestDB(t)
	ok, err := db.DeleteOverride(999)
	require.NoError(t, err)
	require.False(t, ok)
}
