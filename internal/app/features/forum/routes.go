// internal/app/features/forum/routes.go
package forum

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreatePost)
	r.Delete("/comments/{commentID}", h.HandleDeleteComment)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole("admin"))
		ar.Get("/flagged", h.ServeFlagged)
		ar.Post("/flag", h.HandleFlag)
	})

	r.Get("/{postID}", h.ServePost)
	r.Delete("/{postID}", h.HandleDeletePost)
	r.Post("/{postID}/comments", h.HandleCreateComment)
	return r
}
