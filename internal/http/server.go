package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

type Metrics struct {
	FilesTotal      *prometheus.CounterVec
	TracksTotal     *prometheus.CounterVec
	SearchesTotal   *prometheus.CounterVec
	SheetOpsTotal   *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	PlaylistSize    prometheus.Gauge
	LastSyncSuccess prometheus.Gauge
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := newMetrics()

	prometheus.MustRegister(
		metrics.FilesTotal,
		metrics.TracksTotal,
		metrics.SearchesTotal,
		metrics.SheetOpsTotal,
		metrics.ErrorsTotal,
		metrics.SyncDuration,
		metrics.PlaylistSize,
		metrics.LastSyncSuccess,
	)

	mux := setupRoutes(logger)
	server := createHTTPServer(config, mux)

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiosync_files_total",
				Help: "Total number of history files handled",
			},
			[]string{"status"},
		),
		TracksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiosync_tracks_total",
				Help: "Total number of tracks processed",
			},
			[]string{"outcome"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiosync_searches_total",
				Help: "Total number of track lookups",
			},
			[]string{"source"},
		),
		SheetOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiosync_sheet_ops_total",
				Help: "Total number of spreadsheet operations",
			},
			[]string{"op", "status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiosync_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "radiosync_sync_duration_seconds",
				Help:    "Time spent on a full sync run",
				Buckets: prometheus.DefBuckets,
			},
		),
		PlaylistSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "radiosync_rolling_playlist_size",
				Help: "Current number of tracks in the rolling playlist",
			},
		),
		LastSyncSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "radiosync_last_sync_success_timestamp_seconds",
				Help: "Unix time of the last successful sync run",
			},
		),
	}
}

func setupRoutes(logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"radiosync"}`)); err != nil {
			logger.Debug("Failed to write healthz response", zap.Error(err))
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ready","service":"radiosync"}`)); err != nil {
			logger.Debug("Failed to write readyz response", zap.Error(err))
		}
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", homeHandler(logger))

	return mux
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>RadioSync</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">📻 RadioSync</h1>
    <p>Radio Play History → Spotify Sync Service</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>

    <h2>Status</h2>
    <p>Service is running and syncing play history to Spotify.</p>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home response", zap.Error(err))
		}
	}
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordFiles(status string, n int) {
	s.metrics.FilesTotal.WithLabelValues(status).Add(float64(n))
}

func (s *Server) RecordTracks(outcome string, n int) {
	s.metrics.TracksTotal.WithLabelValues(outcome).Add(float64(n))
}

func (s *Server) RecordSearches(source string, n int) {
	s.metrics.SearchesTotal.WithLabelValues(source).Add(float64(n))
}

func (s *Server) RecordSheetOp(op, status string) {
	s.metrics.SheetOpsTotal.WithLabelValues(op, status).Inc()
}

func (s *Server) RecordError(component, errorType string) {
	s.metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (s *Server) RecordSyncDuration(duration time.Duration) {
	s.metrics.SyncDuration.Observe(duration.Seconds())
}

func (s *Server) SetPlaylistSize(size int) {
	s.metrics.PlaylistSize.Set(float64(size))
}

func (s *Server) MarkSyncSuccess(at time.Time) {
	s.metrics.LastSyncSuccess.Set(float64(at.Unix()))
}
