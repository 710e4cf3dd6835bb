// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/service"
)

// Service interfaces for dependency injection and testing

// SyncRunner runs the materialization pipeline
type SyncRunner interface {
	Run(ctx context.Context, req service.SyncRequest) (*service.SyncResult, error)
}

// AnalyticsQuerier serves the materialized projections
type AnalyticsQuerier interface {
	CategoryTotals(ctx context.Context, q service.CategoryTotalsQuery) ([]service.CategoryTotal, error)
	Balances(ctx context.Context, q service.BalanceQuery) ([]service.BalancePoint, error)
	FinancialSummaries(ctx context.Context, q service.SummaryQuery) ([]models.FinancialSummary, error)
	NetWorthComposition(ctx context.Context, userID string) (*models.NetWorthComposition, error)
	Stats() *service.PerformanceStats
}

// HealthCheck probes one backing dependency
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	syncRunner SyncRunner
	querier    AnalyticsQuerier
	checks     map[string]HealthCheck
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// InitialSyncKey guards the sync trigger
	InitialSyncKey string
	// JWTSecret verifies HS256 bearer tokens on the query routes
	JWTSecret string

	RequestsPerSecond float64
	Burst             int

	// Location is the zone RFC3339 timestamps in requests are cut to dates in.
	// Nil means UTC.
	Location *time.Location
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, syncRunner SyncRunner, querier AnalyticsQuerier) *Server {
	if config.Location == nil {
		config.Location = time.UTC
	}

	s := &Server{
		router:     mux.NewRouter(),
		syncRunner: syncRunner,
		querier:    querier,
		checks:     make(map[string]HealthCheck),
		config:     config,
	}

	s.setupRouter()

	return s
}

// AddHealthCheck registers a named dependency probe reported by /health.
// Register checks before Start.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Router middleware only runs for matched routes
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// Logging, recovery and CORS wrap the router itself so unmatched routes
	// and preflight requests pass through them too. Order matters.
	s.handler = LoggingMiddleware(RecoveryMiddleware(CORSMiddleware(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// The sync trigger carries its own shared secret instead of a token, so
	// it is registered ahead of the authenticated subrouter.
	s.router.HandleFunc("/analytics/initial-sync", s.handleInitialSync).Methods(http.MethodPost)

	analytics := s.router.PathPrefix("/analytics").Subrouter()
	analytics.Use(AuthMiddleware(s.config.JWTSecret))
	analytics.HandleFunc("/user-transactions", s.handleUserTransactions).Methods(http.MethodPost)
	analytics.HandleFunc("/user-balance", s.handleUserBalance).Methods(http.MethodPost)
	analytics.HandleFunc("/user-financial-summary", s.handleUserFinancialSummary).Methods(http.MethodPost)
	analytics.HandleFunc("/user-net-worth-composition", s.handleUserNetWorthComposition).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
}

// healthResponse is the body of GET /health
type healthResponse struct {
	Status  string                    `json:"status"`
	Service string                    `json:"service"`
	Checks  map[string]string         `json:"checks,omitempty"`
	Queries *service.PerformanceStats `json:"queries,omitempty"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Service: "refina-analytics",
	}
	if s.querier != nil {
		resp.Queries = s.querier.Stats()
	}

	status := http.StatusOK
	if len(s.checks) > 0 {
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				logging.FromContext(ctx).WithError(err).WithField("check", name).Warn("Health check failed")
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	respondJSON(w, status, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
