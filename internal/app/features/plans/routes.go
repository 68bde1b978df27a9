package plans

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/reminders", h.ServeReminders)
	r.Post("/", h.HandleCreate)
	r.Put("/{id}", h.HandleUpdate)
	r.Post("/{id}/toggle", h.HandleToggle)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
