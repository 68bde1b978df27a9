// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	authstore "github.com/dalemusser/freshershub/internal/app/store/auth"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

type Handler struct {
	Client     *backend.Client
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(client *backend.Client, sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Client:     client,
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles POST /auth/logout. The token is revoked when there is
// one; the cookie is cleared either way.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		store := authstore.New(shared.Client(h.Client, r), h.Log)
		if err := store.SignOut(ctx); err != nil {
			h.Log.Warn("token revocation failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		h.AuditLog.SignedOut(ctx, u.ID)
	}

	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	respond.NoContent(w, r)
}
