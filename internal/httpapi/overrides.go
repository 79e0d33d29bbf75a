package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

type overrideView struct {
	ID           int64  `json:"id"`
	DeviceID     string `json:"device_id"`
	StartEpoch   int64  `json:"start_epoch"`
	EndEpoch     int64  `json:"end_epoch"`
	AssetName    string `json:"asset_name"`
	AssetSHA256  string `json:"asset_sha256"`
	Note         string `json:"note"`
	CreatedEpoch int64  `json:"created_epoch"`
	State        string `json:"state"` // "upcoming", "active", or "expired"
}

// handleOverrides lists the newest overrides with a derived state field,
// unauthenticated: the endpoint table treats the override schedule as
// public the same way /api/v1/devices is.
func (a *API) handleOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := a.db.ListOverrides()
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	now := time.Now().Unix()
	out := make([]overrideView, 0, len(overrides))
	for _, ov := range overrides {
		state := "expired"
		switch {
		case now < ov.StartEpoch:
			state = "upcoming"
		case now >= ov.StartEpoch && now < ov.EndEpoch:
			state = "active"
		}
		out = append(out, overrideView{
			ID:           ov.ID,
			DeviceID:     ov.DeviceID,
			StartEpoch:   ov.StartEpoch,
			EndEpoch:     ov.EndEpoch,
			AssetName:    ov.AssetName,
			AssetSHA256:  ov.AssetSHA256,
			Note:         ov.Note,
			CreatedEpoch: ov.CreatedEpoch,
			State:        state,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleOverrideUpload accepts a multipart form (file, device_id,
// duration_minutes, and optional starts_at/note), normalizes the image
// through the Asset Sink, and creates the override window through the
// Scheduler Core's policy resolution.
func (a *API) handleOverrideUpload(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}

	deviceID := r.FormValue("device_id")
	if deviceID == "" {
		writeError(w, apierr.ClientInputf("device_id is required"))
		return
	}

	durationMinutes, err := strconv.ParseInt(r.FormValue("duration_minutes"), 10, 64)
	if err != nil {
		writeError(w, apierr.ClientInputf("duration_minutes must be an integer"))
		return
	}

	var explicitStart *int64
	if s := r.FormValue("starts_at"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, apierr.ClientInputf("starts_at must be a unix epoch"))
			return
		}
		explicitStart = &n
	}

	note := r.FormValue("note")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierr.ClientInputf("file is required"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apierr.ClientInput(err))
		return
	}

	assetName, assetDigest, err := a.sink.Store(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := a.scheduler.CreateOverride(deviceID, explicitStart, durationMinutes, assetName, assetDigest, note, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, created)
}

// handleOverrideDelete soft-deletes an override by id.
func (a *API) handleOverrideDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, apierr.ClientInputf("invalid override id"))
		return
	}

	ok, err := a.db.DeleteOverride(id)
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}
	if !ok {
		writeError(w, apierr.NotFound(fmt.Errorf("no such override %d", id)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
