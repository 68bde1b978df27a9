package members

import (
	"context"
	"net/http"

	userstore "github.com/dalemusser/freshershub/internal/app/store/users"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

type roleRequest struct {
	Role string `json:"role"`
}

// HandleRole handles PUT /admin/users/{id}/role.
func (h *Handler) HandleRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).UpdateUserRole(ctx, chi.URLParam(r, "id"), req.Role); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}

type warningRequest struct {
	Reason string `json:"reason"`
}

// HandleWarn handles POST /admin/users/{id}/warnings.
func (h *Handler) HandleWarn(w http.ResponseWriter, r *http.Request) {
	var req warningRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	warning, err := h.store(r).IssueWarning(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, r, warning)
}

type restrictRequest struct {
	// Restricted toggles the current value when omitted.
	Restricted *bool `json:"restricted"`
}

// HandleRestrict handles PUT /admin/users/{id}/restricted.
func (h *Handler) HandleRestrict(w http.ResponseWriter, r *http.Request) {
	var req restrictRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)

	var restricted bool
	var err error
	if req.Restricted == nil {
		restricted, err = s.ToggleRestriction(ctx, id)
	} else {
		restricted = *req.Restricted
		err = s.SetRestricted(ctx, id, restricted)
	}
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]bool{"restricted": restricted})
}

type visibleRequest struct {
	Visible bool `json:"visible"`
}

// HandleVisible handles PUT /admin/users/{id}/visible.
func (h *Handler) HandleVisible(w http.ResponseWriter, r *http.Request) {
	var req visibleRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).SetVisible(ctx, chi.URLParam(r, "id"), req.Visible); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}

// HandleDelete handles DELETE /admin/users/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	if err := h.store(r).DeleteUser(ctx, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// HandleBroadcast handles POST /admin/users/broadcast.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	n, err := h.store(r).Broadcast(ctx, req.Message)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]int{"recipients": n})
}

// Bulk actions.
const (
	BulkRestrict   = "restrict"
	BulkUnrestrict = "unrestrict"
	BulkDelete     = "delete"
)

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
}

// HandleBulk handles POST /admin/users/bulk. Each id is applied on its own
// and the response lists which succeeded.
func (h *Handler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	s := h.store(r)
	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.Toggle(id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	var run func(context.Context) (*userstore.BulkResult, error)
	switch req.Action {
	case BulkRestrict:
		run = func(ctx context.Context) (*userstore.BulkResult, error) { return s.BulkSetRestricted(ctx, true) }
	case BulkUnrestrict:
		run = func(ctx context.Context) (*userstore.BulkResult, error) { return s.BulkSetRestricted(ctx, false) }
	case BulkDelete:
		run = s.BulkDelete
	default:
		respond.Message(w, r, http.StatusBadRequest, "action must be restrict, unrestrict or delete")
		return
	}
	res, err := run(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, res)
}
