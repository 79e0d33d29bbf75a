// Package scheduler decides what a polling device displays next and when
// it should wake again, and governs override window creation.
package scheduler

import (
	"fmt"
	"time"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
	"github.com/relabs-tech/photoframe-orchestrator/internal/daily"
	"github.com/relabs-tech/photoframe-orchestrator/internal/store"
)

const (
	pollFloor   = 60
	pollCeiling = 86400
)

// Scheduler is the Scheduler Core. It consumes the Store and a daily
// upstream client to make the device/next decision and to govern
// override creation.
type Scheduler struct {
	DB    *store.DB
	Daily *daily.Client
}

func clamp(v, low, high int64) int64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// NextDecision is the result of a device/next call.
type NextDecision struct {
	DeviceID           string `json:"device_id"`
	ServerEpoch        int64  `json:"server_epoch"`
	Source             string `json:"source"` // "daily" or "override"
	ImageURL           string `json:"image_url"`
	ValidUntilEpoch    int64  `json:"valid_until_epoch"`
	PollAfterSeconds   int64  `json:"poll_after_seconds"`
	DefaultPollSeconds int64  `json:"default_poll_seconds"`
	ActiveOverrideID   *int64 `json:"active_override_id,omitempty"`
}

// Next makes the device/next decision: upsert the device row, select
// the active and upcoming overrides, compute source/poll/valid-until,
// and append a trimmed publish_history row, all under one acquisition
// of the writer lock. No network I/O happens while the lock is held:
// the daily image URL is only computed here, never fetched.
func (s *Scheduler) Next(deviceID string, now time.Time, defaultPollSeconds int64, failureCount int, publicBaseURL string) (NextDecision, error) {
	nowEpoch := now.Unix()
	poll := clamp(defaultPollSeconds, pollFloor, pollCeiling)

	s.DB.Lock()
	defer s.DB.Unlock()

	if err := s.DB.UpsertOnPoll(deviceID, nowEpoch, failureCount); err != nil {
		return NextDecision{}, apierr.Internal(err)
	}

	active, hasActive, err := s.DB.ActiveOverride(deviceID, nowEpoch)
	if err != nil {
		return NextDecision{}, apierr.Internal(err)
	}

	upcoming, hasUpcoming, err := s.DB.UpcomingOverride(deviceID, nowEpoch)
	if err != nil {
		return NextDecision{}, apierr.Internal(err)
	}

	source := "daily"
	imageURL := s.Daily.URL(now)
	validUntil := nowEpoch + poll
	var activeOverrideID *int64

	if hasActive {
		source = "override"
		id := active.ID
		activeOverrideID = &id
		imageURL = fmt.Sprintf("%s/api/v1/assets/%s", publicBaseURL, active.AssetName)
		validUntil = active.EndEpoch
		remaining := active.EndEpoch - nowEpoch
		if remaining < 1 {
			remaining = 1
		}
		poll = minInt64(poll, clamp(remaining, pollFloor, pollCeiling))
	}

	if hasUpcoming {
		untilStart := upcoming.StartEpoch - nowEpoch
		if untilStart < 1 {
			untilStart = 1
		}
		poll = minInt64(poll, clamp(untilStart, pollFloor, pollCeiling))
	}

	err = s.DB.AppendPublishHistory(store.PublishHistoryEntry{
		DeviceID:         deviceID,
		IssuedEpoch:      nowEpoch,
		Source:           source,
		ImageURL:         imageURL,
		OverrideID:       activeOverrideID,
		PollAfterSeconds: poll,
		ValidUntilEpoch:  validUntil,
	})
	if err != nil {
		return NextDecision{}, apierr.Internal(err)
	}

	return NextDecision{
		DeviceID:           deviceID,
		ServerEpoch:        nowEpoch,
		Source:             source,
		ImageURL:           imageURL,
		ValidUntilEpoch:    validUntil,
		PollAfterSeconds:   poll,
		DefaultPollSeconds: clamp(defaultPollSeconds, pollFloor, pollCeiling),
		ActiveOverrideID:   activeOverrideID,
	}, nil
}

// OverrideCreation is the result of CreateOverride's policy resolution,
// returned to the operator alongside the created row.
type OverrideCreation struct {
	ID                        int64  `json:"id"`
	DeviceID                  string `json:"device_id"`
	StartEpoch                int64  `json:"start_epoch"`
	EndEpoch                  int64  `json:"end_epoch"`
	StartPolicy               string `json:"start_policy"` // "explicit", "next_wakeup", or "immediate"
	WillExpireBeforeEffective bool   `json:"will_expire_before_effective"`
	AssetName                 string `json:"asset_name"`
	AssetSHA256               string `json:"asset_sha256"`
}

// CreateOverride records a new override window. If starts_at is omitted
// and the target is a specific device with a later next_wakeup_epoch,
// the window start is pushed forward to it so the window is not consumed
// while the device sleeps.
func (s *Scheduler) CreateOverride(deviceID string, explicitStart *int64, durationMinutes int64, assetName, assetSHA256, note string, now time.Time) (OverrideCreation, error) {
	if durationMinutes <= 0 {
		return OverrideCreation{}, apierr.ClientInputf("duration_minutes must be > 0")
	}

	nowEpoch := now.Unix()

	s.DB.Lock()
	defer s.DB.Unlock()

	var startEpoch int64
	var startPolicy string

	if explicitStart != nil {
		startEpoch = *explicitStart
		startPolicy = "explicit"
	} else {
		startEpoch = nowEpoch
		startPolicy = "immediate"
		if deviceID != store.WildcardDevice {
			nextWakeup, ok, err := s.DB.NextWakeupEpoch(deviceID)
			if err != nil {
				return OverrideCreation{}, apierr.Internal(err)
			}
			if ok && nextWakeup > nowEpoch {
				startEpoch = nextWakeup
				startPolicy = "next_wakeup"
			}
		}
	}

	endEpoch := startEpoch + durationMinutes*60

	id, err := s.DB.CreateOverride(store.NewOverride{
		DeviceID:     deviceID,
		StartEpoch:   startEpoch,
		EndEpoch:     endEpoch,
		AssetName:    assetName,
		AssetSHA256:  assetSHA256,
		Note:         note,
		CreatedEpoch: nowEpoch,
	})
	if err != nil {
		return OverrideCreation{}, apierr.Internal(err)
	}

	willExpireBeforeEffective := false
	if deviceID != store.WildcardDevice {
		nextWakeup, ok, err := s.DB.NextWakeupEpoch(deviceID)
		if err != nil {
			return OverrideCreation{}, apierr.Internal(err)
		}
		if ok && nextWakeup >= endEpoch {
			willExpireBeforeEffective = true
		}
	}

	return OverrideCreation{
		ID:                        id,
		DeviceID:                  deviceID,
		StartEpoch:                startEpoch,
		EndEpoch:                  endEpoch,
		StartPolicy:               startPolicy,
		WillExpireBeforeEffective: willExpireBeforeEffective,
		AssetName:                 assetName,
		AssetSHA256:               assetSHA256,
	}, nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
