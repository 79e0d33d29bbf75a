package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/photoframe-orchestrator/internal/daily"
	"github.com/relabs-tech/photoframe-orchestrator/internal/store"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	utc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	dailyClient := daily.New("http://upstream/image/480x800?date=%DATE%", utc, time.Second)

	return &Scheduler{DB: db, Daily: dailyClient}
}

// No overrides exist: the daily path serves with the requested
// default poll.
func TestNextDailyPathNoOverrides(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1700000000, 0)

	decision, err := s.Next("frame-01", now, 3600, 0, "http://orchestrator.local")
	require.NoError(t, err)
	require.Equal(t, "daily", decision.Source)
	require.Contains(t, decision.ImageURL, "date=2023-11-14")
	require.EqualValues(t, 3600, decision.PollAfterSeconds)
	require.EqualValues(t, 1700003600, decision.ValidUntilEpoch)
	require.Nil(t, decision.ActiveOverrideID)
}

// A device-specific override wins over an overlapping wildcard
// window, and poll shrinks to the remaining window.
func TestNextOverridePrecedenceAndPollShrink(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.DB.CreateOverride(store.NewOverride{
		DeviceID: store.WildcardDevice, StartEpoch: 1000, EndEpoch: 2000,
		AssetName: "wild.bmp", AssetSHA256: "w", CreatedEpoch: 1,
	})
	require.NoError(t, err)
	_, err = s.DB.CreateOverride(store.NewOverride{
		DeviceID: "frame-01", StartEpoch: 1500, EndEpoch: 1800,
		AssetName: "specific.bmp", AssetSHA256: "s", CreatedEpoch: 2,
	})
	require.NoError(t, err)

	decision, err := s.Next("frame-01", time.Unix(1600, 0), 3600, 0, "http://orchestrator.local")
	require.NoError(t, err)
	require.Equal(t, "override", decision.Source)
	require.Contains(t, decision.ImageURL, "specific.bmp")
	require.EqualValues(t, 1800, decision.ValidUntilEpoch)
	require.EqualValues(t, 200, decision.PollAfterSeconds)
	require.NotNil(t, decision.ActiveOverrideID)
}

// An upcoming override shrinks the poll interval even though
// nothing is active yet.
func TestNextUpcomingOverrideShrinksPoll(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)

	_, err := s.DB.CreateOverride(store.NewOverride{
		DeviceID: "frame-01", StartEpoch: 1300, EndEpoch: 1400,
		AssetName: "a.bmp", AssetSHA256: "a", CreatedEpoch: 1,
	})
	require.NoError(t, err)

	decision, err := s.Next("frame-01", now, 3600, 0, "http://orchestrator.local")
	require.NoError(t, err)
	require.Equal(t, "daily", decision.Source)
	require.EqualValues(t, 300, decision.PollAfterSeconds)
}

func TestNextPollAfterAlwaysWithinFloorAndCeiling(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)

	decision, err := s.Next("frame-01", now, 10, 0, "http://orchestrator.local")
	require.NoError(t, err)
	require.EqualValues(t, 60, decision.PollAfterSeconds, "floor applies")

	decision, err = s.Next("frame-01", now, 1_000_000, 0, "http://orchestrator.local")
	require.NoError(t, err)
	require.EqualValues(t, 86400, decision.PollAfterSeconds, "ceiling applies")
}

func TestNextRecordsPublishHistory(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.Next("frame-01", time.Unix(1000, 0), 3600, 0, "http://orchestrator.local")
	require.NoError(t, err)
	_, err = s.Next("frame-01", time.Unix(2000, 0), 3600, 0, "http://orchestrator.local")
	require.NoError(t, err)

	entries, err := s.DB.ListPublishHistory(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.EqualValues(t, 2000, entries[0].IssuedEpoch, "newest first")
}

// start_policy=next_wakeup pushes the window start forward to
// the device's reported next wakeup rather than consuming the window
// while it sleeps.
func TestCreateOverrideStartPolicyNextWakeup(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)
	require.NoError(t, s.DB.Checkin(store.CheckinInput{
		DeviceID: "frame-01", CheckinEpoch: 1000, NextWakeupEpoch: 1600, PollIntervalSeconds: 600,
	}))

	created, err := s.CreateOverride("frame-01", nil, 10, "a.bmp", "digest", "", now)
	require.NoError(t, err)
	require.Equal(t, "next_wakeup", created.StartPolicy)
	require.EqualValues(t, 1600, created.StartEpoch)
	require.EqualValues(t, 1600+600, created.EndEpoch)
	require.False(t, created.WillExpireBeforeEffective)
}

func TestCreateOverrideStartPolicyImmediateWhenNoFutureWakeup(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)

	created, err := s.CreateOverride("frame-01", nil, 10, "a.bmp", "digest", "", now)
	require.NoError(t, err)
	require.Equal(t, "immediate", created.StartPolicy)
	require.EqualValues(t, 1000, created.StartEpoch)
}

func TestCreateOverrideStartPolicyExplicit(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)
	start := int64(5000)

	created, err := s.CreateOverride("frame-01", &start, 10, "a.bmp", "digest", "", now)
	require.NoError(t, err)
	require.Equal(t, "explicit", created.StartPolicy)
	require.EqualValues(t, 5000, created.StartEpoch)
}

func TestCreateOverrideWillExpireBeforeEffective(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)
	require.NoError(t, s.DB.Checkin(store.CheckinInput{
		DeviceID: "frame-01", CheckinEpoch: 1000, NextWakeupEpoch: 100000, PollIntervalSeconds: 600,
	}))
	start := int64(1000)

	created, err := s.CreateOverride("frame-01", &start, 1, "a.bmp", "digest", "", now)
	require.NoError(t, err)
	require.True(t, created.WillExpireBeforeEffective, "device won't wake before the window ends")
}

func TestCreateOverrideRejectsNonPositiveDuration(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.CreateOverride("frame-01", nil, 0, "a.bmp", "digest", "", time.Unix(1000, 0))
	require.Error(t, err)
}

func TestCreateOverrideWildcardNeverUsesNextWakeupPolicy(t *testing.T) {
	s := newTestScheduler(t)
	now := time.Unix(1000, 0)

	created, err := s.CreateOverride(store.WildcardDevice, nil, 10, "a.bmp", "digest", "", now)
	require.NoError(t, err)
	require.Equal(t, "immediate", created.StartPolicy)
}
