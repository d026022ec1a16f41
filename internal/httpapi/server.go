// Package httpapi exposes optimizations over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/identity"
	"PriceOptimizer/internal/model"
)

// Optimizer is the part of the optimization service the API calls.
type Optimizer interface {
	Compute(ctx context.Context, cost, demand string) (*calculator.ProfitModel, model.Result, error)
	Create(ctx context.Context, ownerID string, req model.Request) (*model.Record, error)
	Get(ctx context.Context, ownerID, name string) (*model.Record, error)
	List(ctx context.Context, ownerID string) ([]model.Record, error)
	Update(ctx context.Context, ownerID, name string, req model.Request) (*model.Record, error)
	Delete(ctx context.Context, ownerID, name string) error
}

// ChartSource opens stored chart images. The file store implements it.
type ChartSource interface {
	Open(ownerID, key string) (*os.File, error)
}

// Config holds server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AppName      string
}

// Server is the HTTP front end of the optimizer.
type Server struct {
	httpServer *http.Server
	svc        Optimizer
	ids        identity.Resolver
	charts     ChartSource
	cfg        Config
}

// New wires routes. A nil charts source disables chart serving.
func New(cfg Config, svc Optimizer, ids identity.Resolver, charts ChartSource) *Server {
	if cfg.AppName == "" {
		cfg.AppName = "price-optimizer"
	}
	s := &Server{svc: svc, ids: ids, charts: charts, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /optimizations", s.auth(s.handleCreate))
	mux.HandleFunc("POST /optimizations/{$}", s.auth(s.handleCreate))
	mux.HandleFunc("GET /optimizations", s.auth(s.handleList))
	mux.HandleFunc("GET /optimizations/{$}", s.auth(s.handleList))
	mux.HandleFunc("POST /optimizations/preview", s.auth(s.handlePreview))
	mux.HandleFunc("GET /optimizations/{name}", s.auth(s.handleGet))
	mux.HandleFunc("PUT /optimizations/{name}", s.auth(s.handleUpdate))
	mux.HandleFunc("DELETE /optimizations/{name}", s.auth(s.handleDelete))

	if charts != nil {
		mux.HandleFunc("GET /charts/{owner}/{file}", s.handleChart)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until Stop is called.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("stopping http server")
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWrapper captures the status code for logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
