package httpapi

import (
	"embed"
	"net/http"

	"github.com/gorilla/mux"
)

// handleRoutes registers every endpoint onto router.
func (a *API) handleRoutes(router *mux.Router, staticFS embed.FS) {
	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/", a.handleConsole(staticFS)).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/assets/{name}", a.handleAsset).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/device/next", a.handleDeviceNext).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/device/checkin", a.handleDeviceCheckin).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/device/config", a.handleDeviceConfigGet).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/device/config/applied", a.handleDeviceConfigApplied).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/devices", a.handleDevices).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/publish-history", a.handlePublishHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/device-configs", a.handleDeviceConfigs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/device-config", a.handleCreateDeviceConfig).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/overrides", a.handleOverrides).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/overrides/upload", a.handleOverrideUpload).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/overrides/{id}", a.handleOverrideDelete).Methods(http.MethodDelete)

	router.HandleFunc("/api/v1/preview/current.bmp", a.handlePreview).Methods(http.MethodGet)
	router.HandleFunc("/public/daily.bmp", a.handlePublicDaily).Methods(http.MethodGet)
}
