// internal/app/features/events/handler.go
package events

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	"github.com/dalemusser/freshershub/internal/app/store/audit"
	eventstore "github.com/dalemusser/freshershub/internal/app/store/events"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultUpcoming = 5

// Handler serves the event calendar. Reads come from a schedule kept
// current by a realtime watcher once Start has run; admin mutations go
// through a per-request store acting as the caller.
type Handler struct {
	Client   *backend.Client
	Log      *zap.Logger
	AuditLog *auditlog.Logger
	Policy   notify.Policy

	mu       sync.Mutex
	schedule *eventstore.Store
	watcher  *eventstore.Watcher

	now func() time.Time
}

func NewHandler(client *backend.Client, audit *auditlog.Logger, policy notify.Policy, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Log:      logger,
		AuditLog: audit,
		Policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start subscribes the shared schedule to event changes.
func (h *Handler) Start(ctx context.Context) error {
	s := eventstore.New(h.Client.WithSession(nil), h.Log, h.Policy)
	w, err := s.Watch(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.schedule, h.watcher = s, w
	h.mu.Unlock()
	h.Log.Info("event schedule watcher started")
	return nil
}

// Stop ends the watcher started by Start.
func (h *Handler) Stop() {
	h.mu.Lock()
	w := h.watcher
	h.watcher, h.schedule = nil, nil
	h.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// Updates signals after the watched schedule changes. It is nil before
// Start.
func (h *Handler) Updates() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Updates()
}

// read returns the watched schedule, or fetches a fresh one when no
// watcher is running or its change feed has ended.
func (h *Handler) read(ctx context.Context) (*eventstore.Store, error) {
	h.mu.Lock()
	s, w := h.schedule, h.watcher
	h.mu.Unlock()
	if s != nil && w != nil {
		select {
		case <-w.Done():
		default:
			return s, nil
		}
	}
	s = eventstore.New(h.Client.WithSession(nil), h.Log, h.Policy)
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if err := s.FetchEvents(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// visible narrows s to what the request user may see. Admins see every
// event.
func (h *Handler) visible(r *http.Request, s *eventstore.Store) *eventstore.Store {
	u, ok := auth.CurrentUser(r)
	if ok && u.IsAdmin() {
		return s
	}
	dept := ""
	if ok {
		dept = u.DepartmentID
	}
	return s.Scoped(dept)
}

// ServeList handles GET /events?type=exam.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	s, err := h.read(r.Context())
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	s = h.visible(r, s)
	respond.OK(w, r, map[string]any{"events": s.FilterByType(r.URL.Query().Get("type"))})
}

// ServeUpcoming handles GET /events/upcoming?limit=5.
func (h *Handler) ServeUpcoming(w http.ResponseWriter, r *http.Request) {
	n := defaultUpcoming
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respond.Message(w, r, http.StatusBadRequest, "limit must be a number")
			return
		}
		n = parsed
	}
	s, err := h.read(r.Context())
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	s = h.visible(r, s)
	respond.OK(w, r, map[string]any{"events": s.Upcoming(h.now(), n)})
}

type nextResponse struct {
	Event           *models.Event `json:"event"`
	StartsInSeconds int64         `json:"starts_in_seconds,omitempty"`
}

// ServeNext handles GET /events/next: the soonest event and a countdown.
func (h *Handler) ServeNext(w http.ResponseWriter, r *http.Request) {
	s, err := h.read(r.Context())
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	s = h.visible(r, s)
	now := h.now()
	var out nextResponse
	if e, ok := s.Next(now); ok {
		d, _ := s.Countdown(now)
		out.Event = &e
		out.StartsInSeconds = int64(d / time.Second)
	}
	respond.OK(w, r, out)
}

func (h *Handler) writer(r *http.Request) *eventstore.Store {
	return eventstore.New(shared.Client(h.Client, r), h.Log, h.Policy)
}

func (h *Handler) audit(ctx context.Context, r *http.Request, eventType, id, title string) {
	actor := ""
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.ID
	}
	h.AuditLog.EventChanged(ctx, eventType, actor, id, title)
}

// HandleCreate handles POST /events.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in eventstore.EventInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	res, err := h.writer(r).CreateEvent(ctx, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.audit(ctx, r, audit.EventEventCreated, res.Event.ID, res.Event.Title)
	respond.Created(w, r, res)
}

// HandleUpdate handles PUT /events/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in eventstore.EventInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	id := chi.URLParam(r, "id")
	res, err := h.writer(r).UpdateEvent(ctx, id, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.audit(ctx, r, audit.EventEventUpdated, id, in.Title)
	respond.OK(w, r, res)
}

// HandleDelete handles DELETE /events/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	res, err := h.writer(r).DeleteEvent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.audit(ctx, r, audit.EventEventDeleted, res.Event.ID, res.Event.Title)
	respond.OK(w, r, res)
}
