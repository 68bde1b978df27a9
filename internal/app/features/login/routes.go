// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes is mounted at /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Post("/signup", h.HandleSignup)
	return r
}
