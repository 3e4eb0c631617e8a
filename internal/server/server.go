// Package server provides the ops HTTP server: health and system stats,
// published-artifact serving, manual job triggers, and the live job
// event stream. Leaderboard HTML rendering is an external collaborator
// reading the JSON feed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/events"
	"github.com/forecastbench/forecastbench/internal/objstore"
	"github.com/forecastbench/forecastbench/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log     zerolog.Logger
	Config  *config.Config
	Store   objstore.Store
	Bus     *events.Bus
	Runner  *scheduler.Runner
	Port    int
	DevMode bool
}

// Server is the ops HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	store  objstore.Store
	bus    *events.Bus
	runner *scheduler.Runner
}

// New creates the ops server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		store:  cfg.Store,
		bus:    cfg.Bus,
		runner: cfg.Runner,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event stream upgrades the connection; it must bypass the
		// write timeout middleware would otherwise impose.
		eventsHandler := NewEventsStreamHandler(s.bus, s.log)
		r.Get("/events/stream", eventsHandler.ServeHTTP)

		systemHandlers := NewSystemHandlers(s.log, s.cfg.DataDir, s.runner)
		r.Route("/system", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/status", systemHandlers.HandleSystemStatus)
			r.Get("/jobs", systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}", systemHandlers.HandleTriggerJob)
		})

		artifacts := NewArtifactHandlers(s.store, s.log)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/leaderboard/{variant}", artifacts.HandleLeaderboardJSON)
			r.Get("/leaderboard/{variant}/csv", artifacts.HandleLeaderboardCSV)
			r.Get("/leaderboard/{variant}/sota", artifacts.HandleSOTAGraph)
			r.Get("/question-sets/latest", artifacts.HandleLatestQuestionSet)
			r.Get("/question-sets/{date}/{kind}", artifacts.HandleQuestionSet)
			r.Get("/resolution-sets/{date}", artifacts.HandleResolutionSet)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
