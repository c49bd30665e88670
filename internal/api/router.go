package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/savegress/fundlens/internal/alerts"
	"github.com/savegress/fundlens/internal/audit"
	"github.com/savegress/fundlens/internal/config"
	"github.com/savegress/fundlens/internal/detect"
	"github.com/savegress/fundlens/internal/graph"
	"github.com/savegress/fundlens/internal/narrative"
	"github.com/savegress/fundlens/internal/risk"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store *graph.Store, detector *detect.Detector, analyzer *risk.Analyzer, narrativeEngine *narrative.Engine, alertEngine *alerts.Engine, auditLogger *audit.Logger) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		handlers: NewHandlers(store, detector, analyzer, narrativeEngine, alertEngine, auditLogger, cfg),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1/fundlens", func(r chi.Router) {
		// Entities
		r.Route("/entities", func(r chi.Router) {
			r.Post("/", s.handlers.CreateEntity)
			r.Get("/{id}", s.handlers.GetEntity)
			r.Get("/{id}/patterns", s.handlers.DetectPatterns)
			r.Get("/{id}/risk", s.handlers.RiskReport)
			r.Get("/{id}/graph", s.handlers.EntityGraph)
		})

		// Transactions
		r.Post("/transactions", s.handlers.CreateTransaction)

		// SARs
		r.Route("/sars", func(r chi.Router) {
			r.Post("/", s.handlers.CreateSAR)
			r.Get("/{id}", s.handlers.GetSAR)
			r.Get("/{id}/similar", s.handlers.SimilarSARs)
		})

		// Alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handlers.ListAlerts)
			r.Get("/stats", s.handlers.GetAlertStats)
			r.Get("/{id}", s.handlers.GetAlert)
			r.Post("/{id}/acknowledge", s.handlers.AcknowledgeAlert)
			r.Post("/{id}/resolve", s.handlers.ResolveAlert)
		})

		// Audit
		r.Get("/audit/events", s.handlers.ListAuditEvents)

		// Stats
		r.Get("/stats", s.handlers.GetSystemStats)
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}
