package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txplain/service/config"
	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/metrics"
	"github.com/brojonat/txplain/service/nats"
	"github.com/brojonat/txplain/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TransactionFetcher loads and reduces transactions.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature solanago.Signature) (*solana.RawTransaction, error)
	Summarize(raw *solana.RawTransaction) solana.Summary
}

// Explainer produces explanations for summaries.
type Explainer interface {
	Explain(ctx context.Context, summary solana.Summary, simple bool) explain.Result
}

// Server represents the HTTP server for the explainer service.
type Server struct {
	cfg       *config.Config
	fetcher   TransactionFetcher
	explainer Explainer
	publisher nats.Publisher
	renderer  *TemplateRenderer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher is optional - if nil, no explanation events are published.
// The metrics is optional - if nil, the metrics endpoint is not mounted.
func New(cfg *config.Config, fetcher TransactionFetcher, explainer Explainer, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	renderer, err := NewTemplateRenderer(logger)
	if err != nil {
		// Templates are embedded, so this only fails on a broken build.
		panic(fmt.Sprintf("failed to parse embedded templates: %v", err))
	}
	return &Server{
		cfg:       cfg,
		fetcher:   fetcher,
		explainer: explainer,
		publisher: publisher,
		renderer:  renderer,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /explain", metrics.HTTPMetricsMiddleware(s.metrics, "/explain")(
		handleExplain(s.fetcher, s.explainer, s.publisher, s.logger),
	))

	mux.Handle("GET /{$}", handleIndex(s.renderer))
	mux.Handle("GET /favicon.ico", handleFavicon())
	mux.Handle("GET /health", handleHealth())
	mux.Handle("GET /debug", handleDebug(s.cfg))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return requestIDMiddleware(corsMiddleware(mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long enough for the RPC call plus both provider calls.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.ServerAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware tags each request with an id, reusing the caller's if present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger returns logger annotated with the request id, if any.
func requestLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return logger.With("request_id", id)
	}
	return logger
}
