// Package http serves the prediction form, its JSON and websocket
// counterparts, and the operational endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trafficcast/db"
	"trafficcast/monitoring"
	"trafficcast/predictor"
)

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Port         int
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultServerConfig listens on 8501 with 30s timeouts and a 1 MiB body cap.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         8501,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// History is the read side of the prediction and training logs.
type History interface {
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionLog, error)
	RecentTrainings(ctx context.Context, limit int) ([]db.TrainingLog, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Service  *predictor.Service
	History  History      // optional
	Feed     http.Handler // optional live feed, served at /ws/feed
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server is the form app's HTTP server.
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// NewServer wires the routes and middleware. It does not listen until Start.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("http: predictor service is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	h, err := newHandlers(deps)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	h.register(mux, deps.Gatherer)

	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger, deps.Metrics),
		SecurityHeadersMiddleware,
		RequestSizeMiddleware(config.MaxBodyBytes),
	)

	// websocket routes skip compression; the upgrade needs the raw connection
	root := http.NewServeMux()
	root.Handle("GET /ws", chain(http.HandlerFunc(h.handleWS)))
	if deps.Feed != nil {
		root.Handle("GET /ws/feed", chain(deps.Feed))
	}
	root.Handle("/", chain(gorillahandlers.CompressHandler(mux)))

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			WriteTimeout:      config.Timeout,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}, nil
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
