package members

import (
	"bytes"
	"context"
	"net/http"
	"time"

	metricsstore "github.com/dalemusser/freshershub/internal/app/store/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/export"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// ServeList handles GET /admin/users?q=. The query matches name, email or
// student id.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	s := h.store(r)
	if err := s.FetchUsers(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]any{"users": s.Search(r.URL.Query().Get("q"))})
}

// ServeAnalytics handles GET /admin/users/{id}/analytics.
func (h *Handler) ServeAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	respond.OK(w, r, h.store(r).FetchUserAnalytics(ctx, chi.URLParam(r, "id")))
}

// ServeWarnings handles GET /admin/users/{id}/warnings.
func (h *Handler) ServeWarnings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	list, err := h.store(r).Warnings(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]any{"warnings": list})
}

// ServeExport handles GET /admin/users/export.xlsx.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	s := h.store(r)
	if err := s.FetchUsers(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var buf bytes.Buffer
	if err := s.ExportUsers(ctx, &buf); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	name := "users-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ServeStats handles GET /admin/users/stats: dashboard totals.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	respond.OK(w, r, metricsstore.FetchDashboardCounts(ctx, h.Client.DB))
}
