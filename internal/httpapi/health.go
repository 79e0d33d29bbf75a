package httpapi

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string `json:"status"`
	ServerEpoch int64  `json:"server_epoch"`
	Timezone    string `json:"timezone"`
	Version     string `json:"version"`
	UptimeSec   int64  `json:"uptime_seconds"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ServerEpoch: time.Now().Unix(),
		Timezone:    a.dailyC.TZ.String(),
		Version:     Version,
		UptimeSec:   int64(time.Since(a.startedAt).Seconds()),
	})
}
