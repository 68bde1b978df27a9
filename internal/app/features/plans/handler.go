// internal/app/features/plans/handler.go
package plans

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	planstore "github.com/dalemusser/freshershub/internal/app/store/plans"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the signed-in member's personal planner.
type Handler struct {
	Client *backend.Client
	Log    *zap.Logger
	now    func() time.Time
}

func NewHandler(client *backend.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (h *Handler) store(r *http.Request) *planstore.Store {
	return planstore.New(shared.Client(h.Client, r), h.Log)
}

// ServeList handles GET /plans.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.FetchPlans(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, s.Snapshot())
}

// ServeReminders handles GET /plans/reminders: plans whose reminder is
// due and which have not started.
func (h *Handler) ServeReminders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.FetchPlans(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]any{"plans": s.DueReminders(h.now())})
}

// HandleCreate handles POST /plans.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in planstore.PlanInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	p, err := h.store(r).CreatePlan(ctx, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, r, p)
}

// HandleUpdate handles PUT /plans/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in planstore.PlanInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.UpdatePlan(ctx, chi.URLParam(r, "id"), in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, s.Snapshot())
}

// HandleToggle handles POST /plans/{id}/toggle.
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	done, err := h.store(r).ToggleComplete(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, map[string]bool{"completed": done})
}

// HandleDelete handles DELETE /plans/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).DeletePlan(ctx, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}
