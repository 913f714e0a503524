// Package api exposes docgate's read-only admin surface: status, Prometheus
// metrics, health/readiness probes, and a small dashboard — no tenant CRUD,
// since spec §6 fixes exactly one backend per gateway instance.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docgate/internal/backend"
	"docgate/internal/config"
	"docgate/internal/health"
	"docgate/internal/metrics"
)

// Server is the read-only REST API and metrics server.
type Server struct {
	pool        *backend.Pool
	healthCheck *health.Checker
	metrics     *metrics.Collector
	httpServer  *http.Server
	startTime   time.Time
	listenCfg   config.ListenConfig
	backendCfg  config.BackendConfig
}

// NewServer creates a new admin API server.
func NewServer(p *backend.Pool, hc *health.Checker, m *metrics.Collector, lc config.ListenConfig, bc config.BackendConfig) *Server {
	return &Server{
		pool:        p,
		healthCheck: hc,
		metrics:     m,
		startTime:   time.Now(),
		listenCfg:   lc,
		backendCfg:  bc,
	}
}

// Start starts the HTTP API server listening on the given bind address and port.
func (s *Server) Start(bind string, port int) error {
	r := mux.NewRouter()

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.HandleFunc("/", s.dashboardHandler).Methods("GET")
	r.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%d", bind, port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	slog.Info("admin API listening", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin API server error", "err", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	st := s.healthCheck.GetStatus()
	httpStatus := http.StatusOK
	if st.Status == health.StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status":               st.Status.String(),
		"last_check":           st.LastCheck,
		"consecutive_failures": st.ConsecutiveFailures,
		"last_error":           st.LastError,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := s.pool.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"listen": map[string]any{
			"bind":     s.listenCfg.Bind,
			"port":     s.listenCfg.Port,
			"api_bind": s.listenCfg.APIBind,
			"api_port": s.listenCfg.APIPort,
		},
		"backend": map[string]any{
			"host":   s.backendCfg.Host,
			"port":   s.backendCfg.Port,
			"dbname": s.backendCfg.DBName,
		},
		"pool": map[string]any{
			"active":  stats.Active,
			"idle":    stats.Idle,
			"waiting": stats.Waiting,
			"max":     stats.Max,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
