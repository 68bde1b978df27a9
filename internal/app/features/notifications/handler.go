// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	notificationstore "github.com/dalemusser/freshershub/internal/app/store/notifications"
	"github.com/dalemusser/freshershub/internal/app/system/cache"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the signed-in member's notification inbox. Unread counts
// go through Cache when one is configured.
type Handler struct {
	Client *backend.Client
	Log    *zap.Logger
	Cache  *cache.Client
	TTL    time.Duration
}

func NewHandler(client *backend.Client, unreadCache *cache.Client, ttl time.Duration, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, Cache: unreadCache, TTL: ttl}
}

func (h *Handler) store(r *http.Request) *notificationstore.Store {
	return notificationstore.New(shared.Client(h.Client, r), h.Log, h.Cache, h.TTL)
}

// ServeList handles GET /notifications: the newest notifications and the
// unread count.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.FetchNotifications(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if _, err := s.UnreadCount(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, s.Snapshot())
}

// ServeUnread handles GET /notifications/unread.
func (h *Handler) ServeUnread(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	n, err := h.store(r).UnreadCount(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]int64{"unread": n})
}

// HandleRead handles POST /notifications/{id}/read.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).MarkRead(ctx, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}

// HandleReadAll handles POST /notifications/read-all.
func (h *Handler) HandleReadAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	n, err := h.store(r).MarkAllRead(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]int64{"marked": n})
}
