package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Check is one dependency probed by the health endpoint. Optional checks
// are reported but never fail the endpoint.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

// Handler holds the dependency checks run by GET /health.
type Handler struct {
	Checks []Check
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. The first check is usually the
// database.
func NewHandler(logger *zap.Logger, checks ...Check) *Handler {
	return &Handler{Checks: checks, Log: logger}
}

type checkStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Checks  map[string]checkStatus `json:"checks,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "checks":{"database":{"status":"ok"}} }
//
// When a required check fails: 503 and
//
//	{ "status":"error", "message":"database unavailable", "checks":{…} }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{Status: "ok", Checks: make(map[string]checkStatus, len(h.Checks))}
	for _, c := range h.Checks {
		if err := c.Ping(ctx); err != nil {
			h.Log.Error("health-check: ping failed", zap.String("check", c.Name), zap.Error(err))
			resp.Checks[c.Name] = checkStatus{Status: "error", Error: err.Error()}
			if !c.Optional && resp.Status == "ok" {
				resp.Status = "error"
				resp.Message = c.Name + " unavailable"
			}
			continue
		}
		resp.Checks[c.Name] = checkStatus{Status: "ok"}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
