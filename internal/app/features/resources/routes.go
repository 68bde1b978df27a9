// internal/app/features/resources/routes.go
package resources

import (
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/departments", h.ServeDepartments)
	r.Get("/departments/{deptID}", h.ServeByDepartment)
	r.Get("/mine", h.ServeMine)
	r.Get("/orientation", h.ServeOrientation)
	r.Post("/", h.HandleUpload)
	r.Post("/{id}/download", h.HandleDownload)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole("admin"))
		ar.Get("/review", h.ServeReview)
		ar.Put("/{id}/status", h.HandleStatus)
		ar.Delete("/{id}", h.HandleDelete)
		ar.Post("/departments", h.HandleCreateDepartment)
		ar.Delete("/departments/{deptID}", h.HandleDeleteDepartment)
	})
	return r
}
