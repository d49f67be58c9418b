package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relwatch/internal/resilience/circuitbreaker"
	"relwatch/internal/usecase/check"
)

// RunFunc triggers one check-and-notify run.
type RunFunc func(ctx context.Context) (*check.Result, error)

// HealthServer exposes the watcher's operational endpoints:
//
//	GET  /health        liveness, always 200
//	GET  /health/ready  readiness, 503 until the watcher is initialized
//	GET  /breakers      circuit breaker snapshots
//	POST /run           manual check trigger
//	GET  /metrics       Prometheus metrics
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	isReady  atomic.Bool
	breakers []*circuitbreaker.CircuitBreaker
	run      RunFunc
	server   *http.Server
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server. run may be nil, in which case
// POST /run responds 503.
func NewHealthServer(addr string, logger *slog.Logger, breakers []*circuitbreaker.CircuitBreaker, run RunFunc) *HealthServer {
	return &HealthServer{
		addr:     addr,
		logger:   logger,
		breakers: breakers,
		run:      run,
	}
}

// Start runs the server until the context is cancelled. It returns
// http.ErrServerClosed after a clean shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Minute, // /run waits for a full check
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady flips the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// Handler returns the route table. Tests serve it with httptest instead
// of a real listener.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	mux.HandleFunc("GET /breakers", h.handleBreakers)
	mux.HandleFunc("POST /run", h.handleRun)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if h.isReady.Load() {
		h.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready"})
}

func (h *HealthServer) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	snapshots := make([]circuitbreaker.Snapshot, 0, len(h.breakers))
	for _, cb := range h.breakers {
		snapshots = append(snapshots, cb.Snapshot())
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *HealthServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.run == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready"})
		return
	}

	h.logger.Info("manual check triggered")
	result, err := h.run(r.Context())
	if err != nil {
		h.logger.Error("manual check failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}
