// Package httpapi exposes a local-only, read-only HTTP surface for the
// engine: liveness/health, Prometheus metrics, and a snapshot of current
// trading state. It never accepts control commands; operators act through
// the CLI.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/netx/circuit"
	"github.com/lvnretest/engine/internal/trader"
)

// StatusProvider answers the engine's current trading status. *trader.Trader
// satisfies this directly; cmd/lvnengine wires it in once a run starts.
type StatusProvider interface {
	InPosition() bool
	Summary() trader.TradingSummary
}

// Config holds server bind parameters.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig binds to localhost only, matching the engine's posture of
// never accepting external control.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the engine's local HTTP surface.
type Server struct {
	router  *mux.Router
	server  *http.Server
	cfg     Config
	log     zerolog.Logger
	start   time.Time
	gather  prometheus.Gatherer
	status  StatusProvider
	venues  *circuit.Manager
}

// New builds a Server. status may be nil before a trading run has started;
// the status handler reports "idle" in that case.
func New(cfg Config, gather prometheus.Gatherer, venues *circuit.Manager, status StatusProvider, log zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		cfg:    cfg,
		log:    log,
		start:  time.Now(),
		gather: gather,
		status: status,
		venues: venues,
	}
	s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// SetStatus swaps in the live trader once a run starts.
func (s *Server) SetStatus(status StatusProvider) {
	s.status = status
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoverMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", metricsHandler(s.gather)).Methods(http.MethodGet)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", rw.code).Dur("duration", time.Since(start)).Msg("http request")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("http handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
