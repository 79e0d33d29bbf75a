package httpapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
	"github.com/relabs-tech/photoframe-orchestrator/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().WithError(err).Error("encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.StatusFor(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
