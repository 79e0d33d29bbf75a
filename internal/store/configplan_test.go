package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateConfigPlanVersionsAreStrictlyIncreasing(t *testing.T) {
	db := newTestDB(t)

	id1, err := db.CreateConfigPlan(WildcardDevice, `{}`, "", 100)
	require.NoError(t, err)
	id2, err := db.CreateConfigPlan("frame-01", `{}`, "", 200)
	require.NoError(t, err)
	id3, err := db.CreateConfigPlan("frame-01", `{}`, "", 300)
	require.NoError(t, err)

	require.Less(t, id1, id2)
	require.Less(t, id2, id3)
}

func TestResolvePlanPrefersDeviceSpecificAtEqualRecency(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateConfigPlan(WildcardDevice, `{"a":1}`, "wildcard", 100)
	require.NoError(t, err)
	id2, err := db.CreateConfigPlan("frame-01", `{"a":2}`, "specific", 100)
	require.NoError(t, err)

	plan, ok, err := db.ResolvePlan("frame-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id2, plan.ID)
	require.Equal(t, "specific", plan.Note)
}

func TestResolvePlanFallsBackToWildcard(t *testing.T) {
	db := newTestDB(t)
	id, err := db.CreateConfigPlan(WildcardDevice, `{}`, "", 100)
	require.NoError(t, err)

	plan, ok, err := db.ResolvePlan("frame-99")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, plan.ID)
}

func TestResolvePlanNoneConfigured(t *testing.T) {
	db := newTestDB(t)
	_, ok, err := db.ResolvePlan("frame-01")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateConfigPlanTrimsPerDeviceRetention(t *testing.T) {
	db := newTestDB(t)
	var last int64
	for i := 0; i < ConfigPlanRetentionPerDevice+5; i++ {
		id, err := db.CreateConfigPlan("frame-01", `{}`, "", int64(i))
		require.NoError(t, err)
		last = id
	}

	// list with a limit above the retention cap so only the trim can
	// bring the count down to ConfigPlanRetentionPerDevice
	plans, err := db.ListConfigPlans(ConfigPlanRetentionPerDevice + 5)
	require.NoError(t, err)
	require.Len(t, plans, ConfigPlanRetentionPerDevice)
	require.Equal(t, last, plans[0].ID, "newest first")
}

func TestRecordConfigQueryAndApplied(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordConfigQuery("frame-01", 1000, 0, 5))

	status, ok, err := db.ConfigStatusFor("frame-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1000, status.LastQueryEpoch)
	require.EqualValues(t, 5, status.TargetVersion)

	longError := make([]byte, 600)
	for i := range longError {
		longError[i] = 'e'
	}
	require.NoError(t, db.RecordConfigApplied("frame-01", 2000, 5, true, string(longError)))

	status, ok, err = db.ConfigStatusFor("frame-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, status.ApplyOK)
	require.EqualValues(t, 5, status.AppliedVersion)
	require.Len(t, status.ApplyError, 512, "apply_error truncated to 512 chars")

	// the query fields set earlier must survive the later applied-only upsert
	require.EqualValues(t, 1000, status.LastQueryEpoch)
}

func TestConfigStatusForUnknownDevice(t *testing.T) {
	db := newTestDB(t)
	_, ok, err := db.ConfigStatusFor("nope")
	require.NoError(t, err)
	require.False(t, ok)
}
