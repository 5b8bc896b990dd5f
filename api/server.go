// Package api provides the HTTP API server for saas-compare.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"saas-compare/db/postgres"
	"saas-compare/decision/report"
	"saas-compare/decision/selection"
	"saas-compare/decision/source"
	"saas-compare/internal/observability"
	contracts "saas-compare/pkg/api"
	cmperrors "saas-compare/pkg/errors"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ComparisonStore persists saved comparisons.
type ComparisonStore interface {
	Save(ctx context.Context, c *postgres.SavedComparison) error
	Get(ctx context.Context, id uuid.UUID) (*postgres.SavedComparison, error)
	List(ctx context.Context, limit int) ([]*postgres.SavedComparison, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Dependencies are the collaborators the server routes requests to. Source
// and Selections are required; a nil Comparisons store disables the saved
// comparison routes.
type Dependencies struct {
	Source      source.Source
	Selections  selection.Store
	Comparisons ComparisonStore
	Checks      map[string]Pinger
	Limits      selection.Limits
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// Server is the HTTP API server
type Server struct {
	httpServer  *http.Server
	source      source.Source
	reports     *report.Service
	selector    *selection.Selector
	limits      selection.Limits
	comparisons ComparisonStore
	checks      map[string]Pinger
	metrics     *observability.Metrics
	logger      *zap.Logger
	config      *Config
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 2 * 1024 * 1024, // 2MB
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server
func NewServer(deps Dependencies, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Limits == (selection.Limits{}) {
		deps.Limits = selection.DefaultLimits()
	}
	if deps.Selections == nil {
		deps.Selections = selection.NewMemoryStore()
	}

	src := source.Instrument(deps.Source, deps.Metrics)
	return &Server{
		source:      src,
		reports:     report.NewService(src, deps.Limits, deps.Metrics, deps.Logger),
		selector:    selection.NewSelector(deps.Selections),
		limits:      deps.Limits,
		comparisons: deps.Comparisons,
		checks:      deps.Checks,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		config:      config,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/compare", s.handleCompare)
		r.Get("/entities", s.handleEntities)

		r.Route("/selections/{session}", func(r chi.Router) {
			r.Get("/", s.handleGetSelection)
			r.Put("/", s.handleSetSelection)
			r.Delete("/", s.handleClearSelection)
			r.Post("/items", s.handleAddSelection)
			r.Delete("/items/{id}", s.handleRemoveSelection)
		})

		r.Route("/comparisons", func(r chi.Router) {
			r.Use(s.requireComparisons)
			r.Post("/", s.handleSaveComparison)
			r.Get("/", s.handleListComparisons)
			r.Get("/{id}", s.handleGetComparison)
			r.Delete("/{id}", s.handleDeleteComparison)
		})
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("API server starting", zap.Int("port", s.config.Port))
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, strconv.Itoa(status))
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) requireComparisons(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.comparisons == nil {
			s.jsonError(w, http.StatusNotImplemented, "saved comparisons are not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			s.jsonError(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, contracts.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var denied *report.DeniedError
	if errors.As(err, &denied) {
		s.jsonResponse(w, http.StatusUnprocessableEntity, contracts.ErrorResponse{
			Error:   http.StatusText(http.StatusUnprocessableEntity),
			Code:    cmperrors.ErrCodePolicyViolation,
			Message: err.Error(),
			Policy:  denied.Result,
		})
		return
	}

	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.jsonResponse(w, status, contracts.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    cmperrors.CodeOf(err),
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	switch cmperrors.CodeOf(err) {
	case cmperrors.ErrCodeInvalidEntity, cmperrors.ErrCodeUnknownView, cmperrors.ErrCodeUnknownTierSet:
		return http.StatusBadRequest
	case cmperrors.ErrCodeSelectionLimit:
		return http.StatusConflict
	case cmperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case cmperrors.ErrCodePolicyViolation:
		return http.StatusUnprocessableEntity
	case cmperrors.ErrCodeSourceFailure:
		return http.StatusBadGateway
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, selection.ErrEmptySession), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
