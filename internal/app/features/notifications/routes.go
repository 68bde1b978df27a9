package notifications

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/unread", h.ServeUnread)
	r.Post("/read-all", h.HandleReadAll)
	r.Post("/{id}/read", h.HandleRead)
	return r
}
