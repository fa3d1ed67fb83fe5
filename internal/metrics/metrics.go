package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescan_api_requests_total",
			Help: "Total number of Places API requests by endpoint and response status",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eyescan_api_request_duration_seconds",
			Help:    "Duration of Places API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescan_outcomes_total",
			Help: "Pipeline outcomes by granularity, status and failure category",
		},
		[]string{"level", "status", "category"},
	)

	RecordsAggregated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescan_records_aggregated_total",
			Help: "Unique hospital records accepted by the aggregator",
		},
		[]string{"strategy"},
	)
)

// RecordRequest updates request metrics for a single API call.
func RecordRequest(endpoint, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordOutcome counts a pipeline outcome.
func RecordOutcome(level, status, category string) {
	OutcomesTotal.WithLabelValues(level, status, category).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping metrics server: %w", err)
	}
	return nil
}
