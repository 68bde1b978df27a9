// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /auth/me on the supplied router. The handler
// checks the session itself.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/auth/me", h.ServeUserInfo)
}
