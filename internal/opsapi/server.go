// Package opsapi is the optional, read-only HTTP surface over an
// internal/app.App's reporting calls (SPEC_FULL §11). It is explicitly
// outside the federation core: spec.md §6 states reporting is exposed via
// method calls, not HTTP, so this package exists only to give the teacher's
// gorilla/mux + security-middleware stack a real, exercised home rather
// than dropping it. cmd/videofed-ops wires this into a standalone binary.
package opsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/videofed/internal/app"
	"github.com/tributary-ai/videofed/internal/middleware"
)

// Server is the ops reporting API: health_report, fallback_report,
// prioritizer_summary, and routing_info, each a thin GET wrapper over the
// matching internal/app.App method.
type Server struct {
	app        *app.App
	httpServer *http.Server
	logger     *logrus.Logger
	config     *ServerConfig
	security   *middleware.SecurityMiddleware
	validation *middleware.ValidationMiddleware
}

// ServerConfig holds the ops HTTP listener's settings.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	Security       *middleware.SecurityMiddlewareConfig
	Validation     *middleware.ValidationConfig
}

// NewServer builds the ops server. logger is a *logrus.Logger (not
// internal/obs.Logger) because internal/security and internal/middleware
// take logrus directly.
func NewServer(a *app.App, config *ServerConfig, logger *logrus.Logger) (*Server, error) {
	s := &Server{app: a, logger: logger, config: config}

	if config.Security != nil {
		sec, err := middleware.NewSecurityMiddleware(config.Security, logger)
		if err != nil {
			return nil, fmt.Errorf("opsapi: initializing security middleware: %w", err)
		}
		s.security = sec
	}

	validation, err := middleware.NewValidationMiddleware(config.Validation, logger)
	if err != nil {
		return nil, fmt.Errorf("opsapi: initializing OpenAPI validation middleware: %w", err)
	}
	s.validation = validation

	return s, nil
}

// Start launches the HTTP listener.
func (s *Server) Start() error {
	r := s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.logger.WithField("port", s.config.Port).Info("starting videofed ops API")
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP listener and security middleware down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping videofed ops API")
	if s.security != nil {
		s.security.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.security != nil {
		r.Use(s.security.Handler())
	}
	if s.validation != nil {
		r.Use(s.validation.Middleware)
	}
	r.Use(s.loggingMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealthReport).Methods("GET")
	api.HandleFunc("/fallback", s.handleFallbackReport).Methods("GET")
	api.HandleFunc("/prioritizer", s.handlePrioritizerSummary).Methods("GET")

	routingHandler := http.Handler(http.HandlerFunc(s.handleRoutingInfo))
	if s.security != nil {
		routingHandler = s.security.PlatformRateLimiting()(routingHandler)
	}
	api.Handle("/routing", routingHandler).Methods("GET")

	r.HandleFunc("/health", s.handleHealthReport).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("ops API request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// handleHealthReport serves spec.md §6's health_report() call.
func (s *Server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.HealthReport())
}

// handleFallbackReport serves spec.md §6's fallback_report() call.
func (s *Server) handleFallbackReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.FallbackReport())
}

// handlePrioritizerSummary serves spec.md §6's prioritizer_summary() call.
func (s *Server) handlePrioritizerSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.PrioritizerSummary())
}

// handleRoutingInfo serves spec.md §6's routing_info() call for the
// platform or URL named by the "platform"/"url" query parameters. The
// "url" and "query" parameters are validated against the security
// package's federation-aware checks before they ever reach SelectPlatform,
// and the outcome is recorded to the audit trail.
func (s *Server) handleRoutingInfo(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")

	if s.security != nil {
		if result := s.security.ValidatePlatformURL(rawURL); !result.Valid {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": result.Errors})
			return
		}
		if query := r.URL.Query().Get("query"); query != "" {
			if result := s.security.ValidateSearchQuery(query); !result.Valid {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": result.Errors})
				return
			}
		}
	}

	selected, decision := s.app.SelectPlatform(rawURL)

	if s.security != nil {
		s.security.LogRoutingDecision(r.Context(), decision.SelectedPlatform, rawURL, selected != nil)
	}

	if selected != nil {
		writeJSON(w, http.StatusOK, decision)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, decision)
}

// handleMetrics serves the real Prometheus registry (internal/obs.Metrics),
// replacing the teacher's hardcoded-mock handleMetrics body entirely.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.app.Metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
