package resources

import (
	"context"
	"net/http"

	resourcestore "github.com/dalemusser/freshershub/internal/app/store/resources"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
)

func actorID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}

// ServeReview handles GET /resources/review?status=pending.
func (h *Handler) ServeReview(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	h.list(w, r, func(ctx context.Context, s *resourcestore.Store) error {
		return s.FetchForReview(ctx, status)
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleStatus handles PUT /resources/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if req.Status == "" {
		respond.Message(w, r, http.StatusBadRequest, errMissingStatus.Error())
		return
	}
	id := urlParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	if err := h.store(r).SetStatus(ctx, id, req.Status); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.ResourceStatusChanged(ctx, actorID(r), id, "", req.Status)
	respond.NoContent(w, r)
}

// HandleDelete handles DELETE /resources/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	if err := h.store(r).DeleteResource(ctx, id); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.ResourceDeleted(ctx, actorID(r), id)
	respond.NoContent(w, r)
}

type departmentRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HandleCreateDepartment handles POST /resources/departments.
func (h *Handler) HandleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	d, err := h.store(r).CreateDepartment(ctx, req.Code, req.Name)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.DepartmentCreated(ctx, actorID(r), d.ID, d.Code)
	respond.Created(w, r, d)
}

// HandleDeleteDepartment handles DELETE /resources/departments/{deptID}.
func (h *Handler) HandleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "deptID")
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).DeleteDepartment(ctx, id); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.DepartmentDeleted(ctx, actorID(r), id)
	respond.NoContent(w, r)
}
