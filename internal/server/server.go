// Package server exposes question answering and ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/metrics"
	"github.com/ziadkadry99/docqa/internal/retrieval"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
	DefaultK int  // sources retrieved when a request omits k; 0 means DefaultK
}

// Ingester loads the data directory into the store.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Report, error)
}

// Deps are the collaborators a Server is built from. Ledger, Metrics and
// Tokens are optional.
type Deps struct {
	Store      vectordb.VectorStore
	Embedder   embeddings.Embedder
	LLM        llm.Provider
	Collection string
	Ingester   Ingester
	Ledger     *db.DB
	Metrics    *metrics.Metrics
	Tokens     *llm.TokenCounter
	Logger     zerolog.Logger
}

// Server answers questions over one collection.
type Server struct {
	cfg        Config
	deps       Deps
	chain      *retrieval.Chain
	strategies retrieval.Strategies
	metrics    *metrics.Metrics
	log        zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a new server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		log:     deps.Logger.With().Str("component", "server").Logger(),
		chain: &retrieval.Chain{
			Store:      deps.Store,
			LLM:        deps.LLM,
			Collection: deps.Collection,
		},
		strategies: retrieval.NewStrategies(deps.Embedder, deps.LLM, func(string) {
			m.LLMGenerationsTotal.WithLabelValues(metrics.PurposeHypothetical).Inc()
		}),
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}

	s.router = s.buildRouter()
	s.httpServer.Handler = s.router
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/query", s.handleQuery)
	r.Post("/ingest", s.handleIngest)
	r.Get("/queries", s.handleRecentQueries)
	r.Get("/ws", s.handleWebSocket)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Bootstrap ingests the data directory before serving. An empty directory
// is logged and tolerated; any other failure is returned.
func (s *Server) Bootstrap(ctx context.Context) error {
	_, err := s.Ingest(ctx)
	if errors.Is(err, ingest.ErrNoDocuments) {
		s.log.Warn().Msg("No documents found to ingest at startup")
		return nil
	}
	return err
}

// Ingest runs the ingester and records metrics.
func (s *Server) Ingest(ctx context.Context) (*ingest.Report, error) {
	start := time.Now()
	report, err := s.deps.Ingester.Ingest(ctx)
	switch {
	case errors.Is(err, ingest.ErrNoDocuments):
		s.metrics.ObserveIngest("empty", 0, time.Since(start))
	case err != nil:
		s.metrics.ObserveIngest("error", 0, time.Since(start))
	default:
		s.metrics.ObserveIngest("ok", report.Documents, report.Duration)
	}
	return report, err
}

// Start begins listening on the configured port. After Shutdown it returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Str("collection", s.deps.Collection).Msg("docqa server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server. It is safe to call before or
// concurrently with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
