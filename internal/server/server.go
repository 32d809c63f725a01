// Package server provides the HTTP server and routing for the dashboard API.
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

	"github.com/aristath/beam/internal/config"
	"github.com/aristath/beam/internal/di"
	analyticshandlers "github.com/aristath/beam/internal/modules/analytics/handlers"
	chartshandlers "github.com/aristath/beam/internal/modules/charts/handlers"
	currencyhandlers "github.com/aristath/beam/internal/modules/currency/handlers"
	historicalhandlers "github.com/aristath/beam/internal/modules/historical/handlers"
	momentumhandlers "github.com/aristath/beam/internal/modules/momentum/handlers"
	portfoliohandlers "github.com/aristath/beam/internal/modules/portfolio/handlers"
	snapshothandlers "github.com/aristath/beam/internal/modules/snapshots/handlers"
	valuationhandlers "github.com/aristath/beam/internal/modules/valuation/handlers"
	"github.com/aristath/beam/internal/scheduler"
)

// requestTimeout bounds regular API requests; event streams are exempt.
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Jobs      map[string]scheduler.Job // Jobs that may be triggered by hand
	Port      int
	DevMode   bool
}

// routeRegistrar is implemented by every module handler
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	port           int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		port:      cfg.Port,
	}

	s.systemHandlers = NewSystemHandlers(
		cfg.Log,
		cfg.Container.Databases(),
		cfg.Container.Store,
		cfg.Container.Scheduler,
		cfg.Jobs,
		cfg.Container.StartedAt,
	)

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
		// No WriteTimeout: event streams stay open; requestTimeout covers the API
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// moduleHandlers builds the handler of every API module from the container
func (s *Server) moduleHandlers() []routeRegistrar {
	c := s.container
	return []routeRegistrar{
		portfoliohandlers.NewHandler(
			c.PortfolioService,
			c.Importer,
			c.RemoteFetcher,
			s.cfg.PortfolioURL,
			c.Snapshots,
			c.EventManager,
			s.log,
		),
		currencyhandlers.NewHandler(c.FX, c.Converter, c.Store, s.log),
		valuationhandlers.NewHandler(c.History, s.log),
		analyticshandlers.NewHandler(c.History, s.log),
		momentumhandlers.NewHandler(c.Momentum, c.Store, s.log),
		snapshothandlers.NewHandler(c.Snapshots, c.Store, c.EventManager, s.log),
		historicalhandlers.NewHandler(c.Historical, s.log),
		chartshandlers.NewHandler(c.Charts, s.log),
	}
}

func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived streams sit outside the request timeout
		r.Route("/events", func(r chi.Router) {
			r.Get("/stream", NewEventsStreamHandler(s.container.EventBus, s.log).ServeHTTP)
			r.Get("/ws", NewEventsWSHandler(s.container.EventBus, s.log).ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !devMode {
				r.Use(middleware.Compress(5))
			}

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
			})

			for _, h := range s.moduleHandlers() {
				h.RegisterRoutes(r)
			}
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
