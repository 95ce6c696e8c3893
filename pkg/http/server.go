package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"callpulse-server/pkg/analytics"
	"callpulse-server/pkg/metrics"
)

// ThresholdManager exposes the live alert threshold table. Implemented by
// analytics.Pipeline.
type ThresholdManager interface {
	Thresholds() analytics.Thresholds
	UpdateThresholds(patch analytics.ThresholdsPatch) analytics.Thresholds
}

// Config holds HTTP server settings.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server exposes the realtime WebSocket endpoint, the Prometheus metrics
// endpoint, a health check and the runtime threshold API.
type Server struct {
	logger     *logrus.Logger
	config     Config
	httpServer *http.Server
	thresholds ThresholdManager
	startTime  time.Time
}

// NewServer wires the HTTP routes. wsHandler serves the realtime clients.
func NewServer(logger *logrus.Logger, config Config, wsHandler http.Handler, thresholds ThresholdManager) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		logger:     logger,
		config:     config,
		thresholds: thresholds,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/thresholds", s.handleThresholds)

	s.httpServer = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.config.ListenAddr).Info("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// handleThresholds serves the live alert threshold table. GET returns it;
// PUT merges a partial table into the running configuration without a
// restart.
func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.thresholds.Thresholds())

	case http.MethodPut:
		var patch analytics.ThresholdsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid threshold payload"})
			return
		}
		updated := s.thresholds.UpdateThresholds(patch)
		writeJSON(w, http.StatusOK, updated)

	default:
		w.Header().Set("Allow", "GET, PUT")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
