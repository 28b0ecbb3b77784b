// Package httpapi provides the JSON HTTP API adapter for oasis.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// ErrMissingAnalysisService is returned when the analysis service is not provided.
var ErrMissingAnalysisService = errors.New("httpapi: analysis service is required")

// Ports aggregates the driving ports served over HTTP. Routes whose port
// is nil answer 503.
type Ports struct {
	Answer    driving.AnswerService
	Sessions  driving.SessionService
	Query     driving.QueryService
	Analysis  driving.AnalysisService
	Planning  driving.PlanningService
	Telemetry driving.TelemetryService
	Index     driving.IndexService
}

// Config holds server settings.
type Config struct {
	Addr string
	// LLMModel is reported by the health endpoint; empty means no model.
	LLMModel string
	// RequestTimeout bounds every request; 0 disables the bound.
	RequestTimeout time.Duration
}

// Server serves the oasis JSON API.
type Server struct {
	ports  Ports
	cfg    Config
	router chi.Router
}

// NewServer creates the server and its routes.
func NewServer(ports Ports, cfg Config) (*Server, error) {
	if ports.Analysis == nil {
		return nil, ErrMissingAnalysisService
	}
	s := &Server{ports: ports, cfg: cfg}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/chat", s.handleChat)
		r.Get("/chat/history/{sessionID}", s.handleChatHistory)

		r.Post("/query", s.handleQuery)

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/regions", s.handleRegions)
			r.Get("/stats", s.handleStats)
			r.Get("/facilities/{facilityID}", s.handleFacility)
		})

		r.Route("/planning", func(r chi.Router) {
			r.Post("/generate", s.handlePlanGenerate)
			r.Get("/history", s.handlePlanHistory)
		})

		r.Get("/runs", s.handleRuns)
		r.Post("/index/rebuild", s.handleIndexRebuild)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown: %v", err)
		}
	}()

	logger.Info("listening on %s", s.cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.cfg.Addr, err)
	}
	return nil
}
