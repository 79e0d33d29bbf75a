package httpapi

import (
	"net/http"
	"time"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

// currentBMP resolves the bytes a device would currently receive: the
// active override's asset if one applies to deviceID, otherwise a live
// fetch of the daily upstream image. It performs no locking and no
// publish_history write — this is a read-only preview of what device/next
// would hand out, not a decision itself.
func (a *API) currentBMP(deviceID string, now time.Time) ([]byte, error) {
	active, ok, err := a.db.ActiveOverride(deviceID, now.Unix())
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if ok {
		return a.sink.Read(active.AssetName)
	}
	return a.dailyC.Fetch(now)
}

// handlePreview serves the bytes device/next would currently hand back
// for device_id (default wildcard), for the operator to sanity-check
// before devices wake up.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireOperator(r); err != nil {
		writeError(w, err)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "*"
	}

	data, err := a.currentBMP(deviceID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/bmp")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handlePublicDaily serves today's daily image (or an active wildcard
// override) to an unauthenticated viewer holding the public-photo token.
func (a *API) handlePublicDaily(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequirePublicPhoto(r); err != nil {
		writeError(w, err)
		return
	}

	data, err := a.currentBMP("*", time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/bmp")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
