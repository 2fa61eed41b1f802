package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/pkg/bus"
)

// HealthServer exposes the daemon's liveness over HTTP.
type HealthServer struct {
	client  *bus.Client
	addr    string
	server  *http.Server
	logger  *zap.Logger
	corrupt func() bool
}

// NewHealthServer creates a health server. corrupt reports whether the state
// store has failed its invariant audit; a corrupted store makes the process
// unhealthy even while Redis is fine.
func NewHealthServer(client *bus.Client, addr string, corrupt func() bool, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		client:  client,
		addr:    addr,
		corrupt: corrupt,
		logger:  logger.With(zap.String("component", "health")),
	}
}

// Start begins serving /healthz in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("health server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully stops the health server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// HealthResponse is the JSON shape of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Store  string `json:"store,omitempty"`
	Error  string `json:"error,omitempty"`
}

// healthCheckHandler returns 200 when Redis is reachable and the store audit
// is clean, 503 otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Redis: "connected", Store: "consistent"}
	code := http.StatusOK

	if err := h.client.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	if h.corrupt != nil && h.corrupt() {
		response.Status = "unhealthy"
		response.Store = "corrupted"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
