// internal/app/features/members/handler.go
package members

import (
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	userstore "github.com/dalemusser/freshershub/internal/app/store/users"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

func init() {
	respond.Register(http.StatusBadRequest, userstore.ErrInvalidRole, userstore.ErrNoSelection)
	respond.Register(http.StatusConflict, userstore.ErrSelf)
}

// Handler is the admin surface over the member directory. The store does
// its own audit logging.
type Handler struct {
	Client   *backend.Client
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(client *backend.Client, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, AuditLog: audit}
}

func (h *Handler) store(r *http.Request) *userstore.Store {
	return userstore.New(shared.Client(h.Client, r), h.Log, h.AuditLog)
}
