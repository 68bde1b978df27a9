// internal/app/features/events/routes.go
package events

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/upcoming", h.ServeUpcoming)
	r.Get("/next", h.ServeNext)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole("admin"))
		ar.Post("/", h.HandleCreate)
		ar.Put("/{id}", h.HandleUpdate)
		ar.Delete("/{id}", h.HandleDelete)
	})
	return r
}
