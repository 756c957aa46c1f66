package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/auth"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/embeddings"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/logging"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/metrics"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/storage"
)

// Analyzer runs contract analysis
type Analyzer interface {
	AnalyzeContract(ctx context.Context, text string) (*analyzer.ContractAnalysis, error)
}

// Config holds HTTP layer limits
type Config struct {
	AnalysisTimeout     time.Duration
	MaxUploadBytes      int64
	MaxWords            int
	FreeMonthlyAnalyses int
	AllowedOrigins      []string
	MetricsPath         string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		AnalysisTimeout:     60 * time.Second,
		MaxUploadBytes:      10 << 20,
		MaxWords:            10000,
		FreeMonthlyAnalyses: 3,
		AllowedOrigins:      []string{"*"},
		MetricsPath:         "/metrics",
	}
}

// Stores groups the repositories the server reads and writes
type Stores struct {
	Users     auth.UserRepository
	Contracts storage.ContractRepository
	Analyses  storage.AnalysisRepository
	Usage     storage.UsageRepository
	Sections  storage.SectionRepository
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedder enables clause embeddings and precedent search
func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Server) { s.embedder = e }
}

// WithMetrics enables request counting and the metrics endpoint
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the HTTP API
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *log.Logger
	engine   Analyzer
	authSvc  auth.Service
	stores   Stores
	embedder embeddings.Embedder
	metrics  *metrics.Collector
	uploads  *userLocks
	now      func() time.Time
}

// NewServer wires routes and middleware
func NewServer(config Config, engine Analyzer, authSvc auth.Service, stores Stores, opts ...Option) *Server {
	defaults := DefaultConfig()
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = defaults.AnalysisTimeout
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if config.MaxWords <= 0 {
		config.MaxWords = defaults.MaxWords
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = defaults.AllowedOrigins
	}
	if config.MetricsPath == "" {
		config.MetricsPath = defaults.MetricsPath
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  config,
		logger:  logging.Discard(),
		engine:  engine,
		authSvc: authSvc,
		stores:  stores,
		uploads: newUserLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, s.config.MetricsPath, s.metrics.Handler())
	}

	authHandlers := auth.NewHandlers(s.authSvc)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandlers.Register)
		r.Post("/auth/login", authHandlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authSvc))

			r.Get("/auth/me", authHandlers.Me)

			r.Route("/contracts", func(r chi.Router) {
				r.Get("/", s.handleListContracts)
				r.Post("/", s.handleUploadContract)
				r.Get("/{contractID}", s.handleGetContract)
				r.Delete("/{contractID}", s.handleDeleteContract)
			})

			r.Post("/clauses/search", s.handleSearchClauses)
			r.Get("/usage", s.handleGetUsage)
		})
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
