package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendPublishHistoryKeepsRowsBelowRetention(t *testing.T) {
	db := newTestDB(t)

	// exercising the full 5000 cap would be slow, so this inserts a
	// handful of rows (well below the cap) and checks that the trim run
	// on every append removes none of them and that listing is newest
	// first.
	for i := int64(0); i < 10; i++ {
		require.NoError(t, db.AppendPublishHistory(PublishHistoryEntry{
			DeviceID:         "frame-01",
			IssuedEpoch:      1000 + i,
			Source:           "daily",
			ImageURL:         "http://x",
			PollAfterSeconds: 60,
			ValidUntilEpoch:  1060 + i,
		}))
	}

	entries, err := db.ListPublishHistory(0)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	require.EqualValues(t, 1009, entries[0].IssuedEpoch, "newest first")
}

func TestListPublishHistoryHonorsLimit(t *testing.T) {
	db := newTestDB(t)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, db.AppendPublishHistory(PublishHistoryEntry{
			DeviceID:         "frame-01",
			IssuedEpoch:      i,
			Source:           "daily",
			ImageURL:         "http://x",
			PollAfterSeconds: 60,
			ValidUntilEpoch:  60,
		}))
	}
	entries, err := db.ListPublishHistory(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestAppendPublishHistoryRecordsOverrideID(t *testing.T) {
	db := newTestDB(t)
	id := int64(42)
	require.NoError(t, db.AppendPublishHistory(PublishHistoryEntry{
		DeviceID:         "frame-01",
		IssuedEpoch:      1,
		Source:           "override",
		ImageURL:         "http://x/assets/a.bmp",
		OverrideID:       &id,
		PollAfterSeconds: 60,
		ValidUntilEpoch:  61,
	}))
	entries, err := db.ListPublishHistory(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].OverrideID)
	require.EqualValues(t, 42, *entries[0].OverrideID)
}
