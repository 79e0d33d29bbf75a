// Command photoframe-orchestrator runs the control-plane service for a
// fleet of battery-powered e-paper photo frames: it bootstraps the
// embedded store, asset sink, daily upstream client, auth gate and
// scheduler, then serves the HTTP surface.
package main

import (
	"embed"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/photoframe-orchestrator/internal/assets"
	"github.com/relabs-tech/photoframe-orchestrator/internal/auth"
	"github.com/relabs-tech/photoframe-orchestrator/internal/config"
	"github.com/relabs-tech/photoframe-orchestrator/internal/daily"
	"github.com/relabs-tech/photoframe-orchestrator/internal/httpapi"
	"github.com/relabs-tech/photoframe-orchestrator/internal/logging"
	"github.com/relabs-tech/photoframe-orchestrator/internal/scheduler"
	"github.com/relabs-tech/photoframe-orchestrator/internal/store"
)

//go:embed static
var staticFS embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))
	log := logging.Default()

	tz, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		log.WithError(err).Fatalf("invalid TZ %q", cfg.TZ)
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer db.Close()

	sink, err := assets.New(cfg.DataDir + "/assets")
	if err != nil {
		log.WithError(err).Fatal("open asset sink")
	}

	dailyClient := daily.New(cfg.DailyImageURLTemplate, tz, cfg.DailyFetchTimeout())

	deviceTokens, hasDeviceTokens, err := auth.LoadDeviceTokens(cfg.DeviceTokenMapJSON, cfg.DeviceTokenMap)
	if err != nil {
		log.WithError(err).Fatal("load device token map")
	}
	gate := &auth.Gate{
		OperatorToken:    cfg.PhotoframeToken,
		DeviceTokens:     deviceTokens,
		HasDeviceTokens:  hasDeviceTokens,
		PublicPhotoToken: cfg.PublicDailyBMPToken,
	}

	sched := &scheduler.Scheduler{DB: db, Daily: dailyClient}

	router := mux.NewRouter()
	httpapi.New(&httpapi.Builder{
		DB:        db,
		Sink:      sink,
		Daily:     dailyClient,
		Scheduler: sched,
		Gate:      gate,
		Config:    cfg,
		Router:    router,
		StaticFS:  staticFS,
	})

	log.Infof("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handlers.CompressHandler(router)); err != nil {
		log.WithError(err).Fatal("listen")
	}
}
