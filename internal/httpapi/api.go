// Package httpapi is the orchestrator's HTTP surface: thin adapters
// mapping the REST endpoints onto the store, asset sink, daily upstream
// client, auth gate, scheduler and config planner. No business logic
// lives in the handlers themselves.
package httpapi

import (
	"embed"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/photoframe-orchestrator/internal/assets"
	"github.com/relabs-tech/photoframe-orchestrator/internal/auth"
	"github.com/relabs-tech/photoframe-orchestrator/internal/config"
	"github.com/relabs-tech/photoframe-orchestrator/internal/daily"
	"github.com/relabs-tech/photoframe-orchestrator/internal/logging"
	"github.com/relabs-tech/photoframe-orchestrator/internal/scheduler"
	"github.com/relabs-tech/photoframe-orchestrator/internal/store"
)

// Version is the orchestrator's build version, reported by /healthz.
const Version = "1.0.0"

// API is the orchestrator's HTTP surface.
type API struct {
	db        *store.DB
	sink      *assets.Sink
	dailyC    *daily.Client
	scheduler *scheduler.Scheduler
	gate      *auth.Gate
	cfg       *config.Config
	startedAt time.Time
}

// Builder wires together every collaborator the HTTP surface needs.
// All fields except StaticFS are mandatory; New panics on a missing one.
// A zero StaticFS is not detected: the console route then answers 500.
type Builder struct {
	DB        *store.DB
	Sink      *assets.Sink
	Daily     *daily.Client
	Scheduler *scheduler.Scheduler
	Gate      *auth.Gate
	Config    *config.Config
	Router    *mux.Router
	StaticFS  embed.FS
}

// New realizes the HTTP surface: it wires CORS, request logging, and
// every route onto b.Router.
func New(b *Builder) *API {
	if b.DB == nil || b.Sink == nil || b.Daily == nil || b.Scheduler == nil || b.Gate == nil || b.Config == nil || b.Router == nil {
		panic("httpapi: Builder is missing a mandatory field")
	}

	api := &API{
		db:        b.DB,
		sink:      b.Sink,
		dailyC:    b.Daily,
		scheduler: b.Scheduler,
		gate:      b.Gate,
		cfg:       b.Config,
		startedAt: time.Now(),
	}

	logging.Middleware(b.Router)
	api.handleCORS(b.Router)
	api.handleRoutes(b.Router, b.StaticFS)

	return api
}

func (a *API) handleCORS(router *mux.Router) {
	router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, X-Photoframe-Token, X-Photoframe-Device-Token")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	})
}

func (a *API) publicBaseURL(r *http.Request) string {
	if a.cfg.PublicBaseURL != "" {
		return a.cfg.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
