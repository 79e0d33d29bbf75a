package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
	"github.com/relabs-tech/photoframe-orchestrator/internal/configplan"
)

type deviceView struct {
	DeviceID            string          `json:"device_id"`
	LastCheckinEpoch    int64           `json:"last_checkin_epoch"`
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
	Charging            int             `json:"charging"`
	VbusGood            int             `json:"vbus_good"`
	ReportedConfig      json.RawMessage `json:"reported_config"`
	ReportedConfigEpoch int64           `json:"reported_config_epoch"`
	UpdatedAt           int64           `json:"updated_at"`
}

// handleDevices lists every known device with reported_config redacted.
// It is unauthenticated per the endpoint table: it carries telemetry, not
// secrets, once redacted.
func (a *API) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.db.ListDevices()
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceView{
			DeviceID:            d.DeviceID,
			LastCheckinEpoch:    d.LastCheckinEpoch,
			NextWakeupEpoch:     d.NextWakeupEpoch,
			SleepSeconds:        d.SleepSeconds,
			PollIntervalSeconds: d.PollIntervalSeconds,
			FailureCount:        d.FailureCount,
			LastHTTPStatus:      d.LastHTTPStatus,
			FetchOK:             d.FetchOK,
			ImageChanged:        d.ImageChanged,
			ImageSource:         d.ImageSource,
			LastError:           d.LastError,
			BatteryMV:           d.BatteryMV,
			BatteryPercent:      d.BatteryPercent,
			Charging:            int(d.Charging),
			VbusGood:            int(d.VbusGood),
			ReportedConfig:      configplan.Redact([]byte(d.ReportedConfigJSON)),
			ReportedConfigEpoch: d.ReportedConfigEpoch,
			UpdatedAt:           d.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePublishHistory(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid limit"))
			return
		}
		limit = n
	}

	entries, err := a.db.ListPublishHistory(limit)
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type configPlanView struct {
	ID           int64           `json:"id"`
	DeviceID     string          `json:"device_id"`
	Config       json.RawMessage `json:"config"`
	Note         string          `json:"note"`
	CreatedEpoch int64           `json:"created_epoch"`
}

func (a *API) handleDeviceConfigs(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, apierr.ClientInputf("invalid limit"))
			return
		}
		limit = n
	}

	plans, err := a.db.ListConfigPlans(limit)
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	out := make([]configPlanView, 0, len(plans))
	for _, p := range plans {
		out = append(out, configPlanView{
			ID:           p.ID,
			DeviceID:     p.DeviceID,
			Config:       configplan.Redact([]byte(p.ConfigJSON)),
			Note:         p.Note,
			CreatedEpoch: p.CreatedEpoch,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createDeviceConfigPayload struct {
	DeviceID string          `json:"device_id"`
	Config   json.RawMessage `json:"config"`
	Note     string          `json:"note"`
}

// handleCreateDeviceConfig sanitizes the submitted config against the
// allow-list and publishes it as a new versioned plan.
func (a *API) handleCreateDeviceConfig(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}
	var payload createDeviceConfigPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}
	if len(payload.DeviceID) == 0 || len(payload.DeviceID) > 64 {
		writeError(w, apierr.ClientInputf("device_id must be 1-64 characters"))
		return
	}

	sanitized, err := configplan.Sanitize(payload.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := a.db.CreateConfigPlan(payload.DeviceID, string(sanitized), payload.Note, time.Now().Unix())
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config_version": id,
		"device_id":      payload.DeviceID,
		"config":         configplan.Redact(sanitized),
	})
}
