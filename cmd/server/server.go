package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubelane/kubelane/internal/engine"
	"github.com/kubelane/kubelane/internal/state"
	"github.com/kubelane/kubelane/internal/types"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kubelane_http_requests_total",
	Help: "HTTP requests served, by route.",
}, []string{"route"})

// Config wires the API server's collaborators.
type Config struct {
	Store       state.EventStore
	Engine      *engine.Engine
	Topology    *types.Topology
	TopoVersion string
	Clock       clockwork.Clock
	Logger      *slog.Logger

	// DefaultPreset seeds the zoom level for requests that carry no
	// viewport state. Empty means the 1h ladder entry.
	DefaultPreset string
}

func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("event store is required")
	}
	if c.Engine == nil {
		return errors.New("engine is required")
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// APIServer serves the timeline JSON API consumed by the UI.
type APIServer struct {
	store         state.EventStore
	engine        *engine.Engine
	topo          *types.Topology
	topoVersion   string
	clock         clockwork.Clock
	logger        *slog.Logger
	defaultPreset string
	router        chi.Router
}

func New(cfg Config) (*APIServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api := &APIServer{
		store:         cfg.Store,
		engine:        cfg.Engine,
		topo:          cfg.Topology,
		topoVersion:   cfg.TopoVersion,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		defaultPreset: cfg.DefaultPreset,
	}
	api.router = api.buildRouter()
	return api, nil
}

func (api *APIServer) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", api.handleHealth)
	r.Get("/ready", api.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/timeline", api.counted("timeline", api.handleTimeline))
		r.Get("/lane", api.counted("lane", api.handleLane))
		r.Get("/events", api.counted("events", api.handleEvents))
		r.Post("/rerank", api.counted("rerank", api.handleRerank))
	})
	return r
}

func (api *APIServer) counted(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestsTotal.WithLabelValues(route).Inc()
		start := time.Now()
		next(w, r)
		api.logger.Debug("request served", "route", route, "duration", time.Since(start))
	}
}

// Handler exposes the router for tests and embedding.
func (api *APIServer) Handler() http.Handler {
	return api.router
}

// Start blocks serving on addr.
func (api *APIServer) Start(addr string) error {
	api.logger.Info("API server listening", "addr", addr)
	return http.ListenAndServe(addr, api.router)
}
