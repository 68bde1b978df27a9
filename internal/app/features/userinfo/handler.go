// internal/app/features/userinfo/handler.go
package userinfo

import (
	"context"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	authstore "github.com/dalemusser/freshershub/internal/app/store/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's profile.
type Handler struct {
	Client *backend.Client
	Log    *zap.Logger
}

func NewHandler(client *backend.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger}
}

type userInfo struct {
	Authenticated bool            `json:"authenticated"`
	User          *models.Profile `json:"user,omitempty"`
}

// ServeUserInfo handles GET /auth/me. It always answers 200; a missing or
// stale session reports authenticated=false.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	if shared.Session(r) == nil {
		respond.OK(w, r, userInfo{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	store := authstore.New(shared.Client(h.Client, r), h.Log)
	store.InitializeAuth(ctx)
	u := store.User()
	respond.OK(w, r, userInfo{Authenticated: u != nil, User: u})
}
