package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
	"github.com/relabs-tech/photoframe-orchestrator/internal/configplan"
	"github.com/relabs-tech/photoframe-orchestrator/internal/logging"
	"github.com/relabs-tech/photoframe-orchestrator/internal/store"
)

func (a *API) handleDeviceNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device_id")
	if len(deviceID) == 0 || len(deviceID) > 64 {
		writeError(w, apierr.ClientInputf("device_id must be 1-64 characters"))
		return
	}

	if err := a.gate.RequireDevice(r, deviceID); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	if s := q.Get("now_epoch"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid now_epoch"))
			return
		}
		now = time.Unix(n, 0)
	}

	defaultPoll := int64(a.cfg.DefaultPollSeconds)
	if s := q.Get("default_poll_seconds"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid default_poll_seconds"))
			return
		}
		defaultPoll = n
	}

	failureCount := 0
	if s := q.Get("failure_count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid failure_count"))
			return
		}
		failureCount = n
	}

	decision, err := a.scheduler.Next(deviceID, now, defaultPoll, failureCount, a.publicBaseURL(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

type checkinPayload struct {
	DeviceID            string          `json:"device_id"`
	CheckinEpoch        int64           `json:"checkin_epoch"`
	NextWakeupEpoch     int64           `json:"next_wakeup_epoch"`
	SleepSeconds        int64           `json:"sleep_seconds"`
	PollIntervalSeconds int64           `json:"poll_interval_seconds"`
	FailureCount        int             `json:"failure_count"`
	LastHTTPStatus      int             `json:"last_http_status"`
	FetchOK             bool            `json:"fetch_ok"`
	ImageChanged        bool            `json:"image_changed"`
	ImageSource         string          `json:"image_source"`
	LastError           string          `json:"last_error"`
	BatteryMV           int             `json:"battery_mv"`
	BatteryPercent      int             `json:"battery_percent"`
	Charging            *int            `json:"charging"`
	VbusGood            *int            `json:"vbus_good"`
	ReportedConfig      json.RawMessage `json:"reported_config"`
}

func (a *API) handleDeviceCheckin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}

	var payload checkinPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}
	if len(payload.DeviceID) == 0 || len(payload.DeviceID) > 64 {
		writeError(w, apierr.ClientInputf("device_id must be 1-64 characters"))
		return
	}

	if err := a.gate.RequireDevice(r, payload.DeviceID); err != nil {
		writeError(w, err)
		return
	}

	charging := tristateFromPointer(payload.Charging)
	vbusGood := tristateFromPointer(payload.VbusGood)

	reportedConfigJSON := "{}"
	reportedConfigEpoch := int64(0)
	if len(payload.ReportedConfig) > 0 && string(payload.ReportedConfig) != "null" {
		sanitized, err := configplan.Sanitize(payload.ReportedConfig)
		if err != nil {
			writeError(w, err)
			return
		}
		reportedConfigJSON = string(sanitized)
		reportedConfigEpoch = payload.CheckinEpoch
	}

	err = a.db.Checkin(store.CheckinInput{
		DeviceID:            payload.DeviceID,
		CheckinEpoch:        payload.CheckinEpoch,
		NextWakeupEpoch:     payload.NextWakeupEpoch,
		SleepSeconds:        payload.SleepSeconds,
		PollIntervalSeconds: payload.PollIntervalSeconds,
		FailureCount:        payload.FailureCount,
		LastHTTPStatus:      payload.LastHTTPStatus,
		FetchOK:             payload.FetchOK,
		ImageChanged:        payload.ImageChanged,
		ImageSource:         payload.ImageSource,
		LastError:           payload.LastError,
		BatteryMV:           payload.BatteryMV,
		BatteryPercent:      payload.BatteryPercent,
		Charging:            charging,
		VbusGood:            vbusGood,
		ReportedConfigJSON:  reportedConfigJSON,
		ReportedConfigEpoch: reportedConfigEpoch,
	})
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("checkin failed")
		writeError(w, apierr.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func tristateFromPointer(p *int) store.TriState {
	if p == nil {
		return store.Unknown
	}
	switch *p {
	case 0:
		return store.Off
	case 1:
		return store.On
	default:
		return store.Unknown
	}
}

func (a *API) handleDeviceConfigGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device_id")
	if len(deviceID) == 0 || len(deviceID) > 64 {
		writeError(w, apierr.ClientInputf("device_id must be 1-64 characters"))
		return
	}
	if err := a.gate.RequireDevice(r, deviceID); err != nil {
		writeError(w, err)
		return
	}

	currentVersion := int64(0)
	if s := q.Get("current_version"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid current_version"))
			return
		}
		currentVersion = n
	}

	plan, ok, err := a.db.ResolvePlan(deviceID)
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	now := time.Now().Unix()
	targetVersion := int64(0)
	if ok {
		targetVersion = plan.ID
	}
	if err := a.db.RecordConfigQuery(deviceID, now, currentVersion, targetVersion); err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"config_version": 0,
			"config":         map[string]interface{}{},
		})
		return
	}

	var configObj json.RawMessage = json.RawMessage(plan.ConfigJSON)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config_version": plan.ID,
		"config":         configObj,
	})
}

type configAppliedPayload struct {
	DeviceID      string `json:"device_id"`
	ConfigVersion int64  `json:"config_version"`
	Applied       bool   `json:"applied"`
	Error         string `json:"error"`
	AppliedEpoch  int64  `json:"applied_epoch"`
}

func (a *API) handleDeviceConfigApplied(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}
	var payload configAppliedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}
	if len(payload.DeviceID) == 0 || len(payload.DeviceID) > 64 {
		writeError(w, apierr.ClientInputf("device_id must be 1-64 characters"))
		return
	}
	if err := a.gate.RequireDevice(r, payload.DeviceID); err != nil {
		writeError(w, err)
		return
	}

	appliedEpoch := payload.AppliedEpoch
	if appliedEpoch == 0 {
		appliedEpoch = time.Now().Unix()
	}

	if err := a.db.RecordConfigApplied(payload.DeviceID, appliedEpoch, payload.ConfigVersion, payload.Applied, payload.Error); err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := a.sink.Read(name)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/bmp")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
