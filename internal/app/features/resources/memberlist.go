package resources

import (
	"context"
	"net/http"

	resourcestore "github.com/dalemusser/freshershub/internal/app/store/resources"
	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string { return chi.URLParam(r, key) }

// ServeDepartments handles GET /resources/departments.
func (h *Handler) ServeDepartments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, s *resourcestore.Store) error {
		return s.FetchDepartments(ctx)
	})
}

// ServeByDepartment handles GET /resources/departments/{deptID}.
func (h *Handler) ServeByDepartment(w http.ResponseWriter, r *http.Request) {
	dept := urlParam(r, "deptID")
	h.list(w, r, func(ctx context.Context, s *resourcestore.Store) error {
		return s.FetchResourcesByDepartment(ctx, dept)
	})
}

// ServeMine handles GET /resources/mine: the caller's department library.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, s *resourcestore.Store) error {
		return s.FetchMyResources(ctx)
	})
}

// ServeOrientation handles GET /resources/orientation.
func (h *Handler) ServeOrientation(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, s *resourcestore.Store) error {
		return s.FetchOrientation(ctx)
	})
}
