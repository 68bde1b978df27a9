// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the admin member routes under the path where the caller
// mounts it. Typically: r.Mount("/admin/users", members.Routes(h, sm))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole("admin"))

	r.Get("/", h.ServeList)
	r.Get("/stats", h.ServeStats)
	r.Get("/export.xlsx", h.ServeExport)
	r.Post("/broadcast", h.HandleBroadcast)
	r.Post("/bulk", h.HandleBulk)

	r.Route("/{id}", func(ur chi.Router) {
		ur.Get("/analytics", h.ServeAnalytics)
		ur.Get("/warnings", h.ServeWarnings)
		ur.Post("/warnings", h.HandleWarn)
		ur.Put("/role", h.HandleRole)
		ur.Put("/restricted", h.HandleRestrict)
		ur.Put("/visible", h.HandleVisible)
		ur.Delete("/", h.HandleDelete)
	})
	return r
}
