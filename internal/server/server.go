// Package server implements HTTP server for health checks, metrics and
// manual dump requests.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// DumpTrigger requests an out-of-schedule dump of every type.
type DumpTrigger interface {
	Trigger(reason string) bool
}

// Config contains listen ports and endpoint paths.
type Config struct {
	HealthPort    int
	MetricsPort   int
	LivenessPath  string
	ReadinessPath string
	DumpPath      string
	MetricsPath   string
}

// Server represents the HTTP server for health, control and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	config Config,
	healthChecker HealthChecker,
	trigger DumpTrigger,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	// Health and control server
	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.HealthPort),
		Handler:      NewHealthMux(config, healthChecker, trigger, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		healthServer:  healthServer,
		metricsServer: metricsServer,
		logger:        logger,
	}
}

// NewHealthMux builds the health and control routes. Empty paths fall back
// to /health/live, /health/ready and /dump.
func NewHealthMux(config Config, checker HealthChecker, trigger DumpTrigger, logger *zap.Logger) *http.ServeMux {
	live := orDefault(config.LivenessPath, "/health/live")
	ready := orDefault(config.ReadinessPath, "/health/ready")
	dump := orDefault(config.DumpPath, "/dump")

	mux := http.NewServeMux()
	mux.HandleFunc(live, LivenessHandler(checker, logger))
	mux.HandleFunc(ready, ReadinessHandler(checker, logger))
	if trigger != nil {
		mux.HandleFunc(dump, DumpHandler(trigger, logger))
	}
	return mux
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Start starts both HTTP servers.
func (s *Server) Start() error {
	// Start health server
	go func() {
		s.logger.Info("starting health server", zap.String("addr", s.healthServer.Addr))
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server failed", zap.Error(err))
		}
	}()

	// Start metrics server
	go func() {
		s.logger.Info("starting metrics server", zap.String("addr", s.metricsServer.Addr))
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, 2)

	go func() {
		errChan <- s.healthServer.Shutdown(ctx)
	}()

	go func() {
		errChan <- s.metricsServer.Shutdown(ctx)
	}()

	var lastErr error
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", zap.Error(err))
			lastErr = err
		}
	}

	return lastErr
}
