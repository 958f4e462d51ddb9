// Package server implements the HTTP endpoints for health checks, metrics
// and catalog diagnostics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates a new HTTP server. Health, readiness and the catalog
// view share the health port; Prometheus is served on the metrics port.
func NewServer(
	healthPort int,
	metricsPort int,
	healthChecker HealthChecker,
	catalog CatalogSource,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", healthPort),
		Handler:      HealthMux(healthChecker, catalog, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", metricsPort),
		Handler:      MetricsMux(registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		healthServer:  healthServer,
		metricsServer: metricsServer,
		logger:        logger,
	}
}

// HealthMux routes the health and diagnostics endpoints.
func HealthMux(healthChecker HealthChecker, catalog CatalogSource, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", LivenessHandler(healthChecker, logger))
	mux.HandleFunc("/health/ready", ReadinessHandler(healthChecker, logger))
	mux.HandleFunc("/debug/tables", TablesHandler(catalog, logger))
	return mux
}

// MetricsMux routes the Prometheus endpoint.
func MetricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// Start starts both HTTP servers.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("Starting health server", "addr", s.healthServer.Addr)
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health server failed", "error", err)
		}
	}()

	go func() {
		s.logger.Info("Starting metrics server", "addr", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP servers")

	errChan := make(chan error, 2)
	go func() { errChan <- s.healthServer.Shutdown(ctx) }()
	go func() { errChan <- s.metricsServer.Shutdown(ctx) }()

	var lastErr error
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			s.logger.Error("Error shutting down server", "error", err)
			lastErr = err
		}
	}
	return lastErr
}
