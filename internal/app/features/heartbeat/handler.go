// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

const profilesTable = "profiles"

// Handler handles heartbeat requests for activity tracking.
type Handler struct {
	Client *backend.Client
	Log    *zap.Logger
	now    func() time.Time
}

// NewHandler creates a new heartbeat handler.
func NewHandler(client *backend.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// heartbeatRequest is the JSON body for the heartbeat endpoint.
type heartbeatRequest struct {
	Page string `json:"page"`
}

// ServeHeartbeat handles POST /api/heartbeat.
// Stamps the member's last_active time. Failures are logged and the
// response is always 200.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		w.WriteHeader(http.StatusOK) // Silent fail - no user
		return
	}

	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // page is optional
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.Client.DB.Update(ctx, backend.From(profilesTable).Eq("_id", u.ID), backend.Set{"last_active": h.now()})
	switch {
	case err != nil:
		h.Log.Warn("failed to update profile last_active",
			zap.Error(err),
			zap.String("user_id", u.ID))
	case n == 0:
		h.Log.Debug("heartbeat for missing profile", zap.String("user_id", u.ID))
	default:
		h.Log.Debug("heartbeat", zap.String("user_id", u.ID), zap.String("page", req.Page))
	}

	w.WriteHeader(http.StatusOK)
}
