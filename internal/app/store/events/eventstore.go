// Package eventstore holds the shared event calendar. Every admin mutation
// is followed by a full re-fetch and a best-effort notification fan-out.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/observability"
	"github.com/dalemusser/freshershub/internal/app/system/saga"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EventsTable = "events"

// Step names in a mutation report.
const (
	StepMutate  = "mutate"
	StepRefetch = "refetch"
	StepNotify  = "notify"
)

// DefaultDuration is applied when an event is created without an end time.
const DefaultDuration = time.Hour

var ErrInvalidInput = errors.New("invalid input")

// ValidationError carries per-field messages for a rejected event.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

// EventInput is an event as submitted by an admin.
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=200" label:"Title"`
	Description string    `json:"description" validate:"max=4000" label:"Description"`
	StartTime   time.Time `json:"start_time" validate:"required" label:"Start"`
	EndTime     time.Time `json:"end_time" validate:"gtfield=StartTime" label:"End"`
	Location    string    `json:"location" validate:"max=200" label:"Location"`
	Type        string    `json:"type" validate:"required,eventtype" label:"Type"`
	Departments []string  `json:"departments" validate:"max=50" label:"Departments"`
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if in.Type == "" {
		in.Type = models.EventOther
	}
	in.StartTime = in.StartTime.UTC()
	if in.EndTime.IsZero() && !in.StartTime.IsZero() {
		in.EndTime = in.StartTime.Add(DefaultDuration)
	}
	in.EndTime = in.EndTime.UTC()
}

// MutationResult is the event written and what happened at each step.
type MutationResult struct {
	Event  *models.Event `json:"event,omitempty"`
	Report *saga.Report  `json:"report"`
}

// State is a point-in-time copy of the store.
type State struct {
	Events  []models.Event `json:"events"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
}

// Store holds the event list, ordered by start time.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	policy notify.Policy
	now    func() time.Time

	mu      sync.RWMutex
	events  []models.Event
	loading bool
	err     string
}

// New builds a store acting through client. policy picks who hears about
// event changes.
func New(client *backend.Client, logger *zap.Logger, policy notify.Policy) *Store {
	if policy == "" {
		policy = notify.PolicyAll
	}
	return &Store{client: client, log: logger, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Events:  append([]models.Event{}, s.events...),
		Loading: s.loading,
		Error:   s.err,
	}
}

// Events returns the last fetched event list.
func (s *Store) Events() []models.Event { return s.Snapshot().Events }

// VisibleTo reports whether a member of departmentID sees e under p. Under
// PolicyDepartment an event with a department list is only seen by those
// departments; everything else is seen by everyone.
func VisibleTo(e models.Event, p notify.Policy, departmentID string) bool {
	if p != notify.PolicyDepartment || len(e.Departments) == 0 {
		return true
	}
	return departmentID != "" && slices.Contains(e.Departments, departmentID)
}

// Scoped returns a read-only copy holding the events a member of
// departmentID may see. Under PolicyAll it returns s itself.
func (s *Store) Scoped(departmentID string) *Store {
	if s.policy != notify.PolicyDepartment {
		return s
	}
	out := New(s.client, s.log, s.policy)
	out.events = []models.Event{}
	for _, e := range s.Events() {
		if VisibleTo(e, s.policy, departmentID) {
			out.events = append(out.events, e)
		}
	}
	return out
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("events", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// FetchEvents replaces the list with every event, soonest first.
func (s *Store) FetchEvents(ctx context.Context) error {
	s.begin()
	return s.end("fetch", s.refresh(ctx))
}

func (s *Store) refresh(ctx context.Context) error {
	list, err := backend.FindAll[models.Event](ctx, s.client.DB,
		backend.From(EventsTable).OrderBy("start_time", false))
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	s.mu.Lock()
	s.events = list
	s.mu.Unlock()
	return nil
}

// fanOut notifies the recipients chosen by the store's policy.
func (s *Store) fanOut(ctx context.Context, departments []string, message string) error {
	users := notify.Recipients(ctx, s.client.DB, s.policy, departments)
	if !users.Success {
		return users.Err
	}
	res := notify.CreateNotificationsForUsers(ctx, s.client.DB, users.Users, message, models.NotifyEvent)
	if !res.Success {
		return res.Err
	}
	return nil
}

// run executes mutate, re-fetch and fan-out. Only the mutation can fail the
// operation; a failed re-fetch is recorded on the store and a failed
// fan-out is logged and reported to Sentry.
func (s *Store) run(ctx context.Context, op string, mutate func(ctx context.Context) error, departments func() []string, message func() string) (*saga.Report, error) {
	s.begin()
	rep := saga.Run(ctx,
		saga.Step{Name: StepMutate, Run: mutate},
		saga.Step{Name: StepRefetch, BestEffort: true, Run: s.refresh},
		saga.Step{Name: StepNotify, BestEffort: true, Run: func(ctx context.Context) error {
			return s.fanOut(ctx, departments(), message())
		}},
	)

	if st, _ := rep.Step(StepNotify); st.Status == saga.StatusFailed {
		s.log.Error("event notification fan-out failed",
			zap.String("op", op), zap.Error(st.Err))
		observability.CaptureWithTags(st.Err, map[string]string{"store": "events", "op": op, "step": StepNotify})
	}
	if err := rep.Err(); err != nil {
		return rep, s.end(op, err)
	}
	if st, _ := rep.Step(StepRefetch); st.Status == saga.StatusFailed {
		_ = s.end(op, st.Err)
		return rep, nil
	}
	return rep, s.end(op, nil)
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("Mon 2 Jan 2006 15:04 MST")
}

func (s *Store) createdBy() string {
	if sess := s.client.Session(); sess != nil {
		return sess.User.ID
	}
	return ""
}

// CreateEvent inserts an event, re-fetches the list and tells recipients.
func (s *Store) CreateEvent(ctx context.Context, in EventInput) (*MutationResult, error) {
	in.normalize()
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	now := s.now()
	e := models.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Location:    in.Location,
		Type:        in.Type,
		Departments: in.Departments,
		CreatedBy:   s.createdBy(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rep, err := s.run(ctx, "create",
		func(ctx context.Context) error {
			_, err := s.client.DB.Insert(ctx, EventsTable, e)
			return err
		},
		func() []string { return e.Departments },
		func() string { return fmt.Sprintf("New event: %q on %s", e.Title, formatWhen(e.StartTime)) },
	)
	out := &MutationResult{Report: rep}
	if err == nil {
		out.Event = &e
	}
	return out, err
}

// UpdateEvent replaces an event's fields, re-fetches the list and tells
// recipients.
func (s *Store) UpdateEvent(ctx context.Context, id string, in EventInput) (*MutationResult, error) {
	in.normalize()
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	now := s.now()
	rep, err := s.run(ctx, "update",
		func(ctx context.Context) error {
			n, err := s.client.DB.Update(ctx, backend.From(EventsTable).Eq("_id", id), backend.Set{
				"title":       in.Title,
				"description": in.Description,
				"start_time":  in.StartTime,
				"end_time":    in.EndTime,
				"location":    in.Location,
				"type":        in.Type,
				"departments": in.Departments,
				"updated_at":  now,
			})
			if err == nil && n == 0 {
				err = backend.ErrNotFound
			}
			return err
		},
		func() []string { return in.Departments },
		func() string { return fmt.Sprintf("Event updated: %q now starts %s", in.Title, formatWhen(in.StartTime)) },
	)
	out := &MutationResult{Report: rep}
	if err == nil {
		for _, e := range s.Events() {
			if e.ID == id {
				e := e
				out.Event = &e
			}
		}
	}
	return out, err
}

// DeleteEvent removes an event, re-fetches the list and tells recipients.
func (s *Store) DeleteEvent(ctx context.Context, id string) (*MutationResult, error) {
	var gone models.Event
	rep, err := s.run(ctx, "delete",
		func(ctx context.Context) error {
			e, err := backend.FindOne[models.Event](ctx, s.client.DB, backend.From(EventsTable).Eq("_id", id))
			if err != nil {
				return err
			}
			gone = e
			_, err = s.client.DB.Delete(ctx, backend.From(EventsTable).Eq("_id", id))
			return err
		},
		func() []string { return gone.Departments },
		func() string { return fmt.Sprintf("Event cancelled: %q", gone.Title) },
	)
	out := &MutationResult{Report: rep}
	if err == nil {
		out.Event = &gone
	}
	return out, err
}

// Upcoming returns up to n events that have not started by now, soonest
// first. n <= 0 returns all of them.
func (s *Store) Upcoming(now time.Time, n int) []models.Event {
	events := s.Events()
	sort.SliceStable(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	out := []models.Event{}
	for _, e := range events {
		if e.StartTime.After(now) {
			out = append(out, e)
			if n > 0 && len(out) == n {
				break
			}
		}
	}
	return out
}

// Next returns the soonest event that has not started by now.
func (s *Store) Next(now time.Time) (models.Event, bool) {
	up := s.Upcoming(now, 1)
	if len(up) == 0 {
		return models.Event{}, false
	}
	return up[0], true
}

// Countdown returns the time left until the next event starts.
func (s *Store) Countdown(now time.Time) (time.Duration, bool) {
	e, ok := s.Next(now)
	if !ok {
		return 0, false
	}
	return e.StartTime.Sub(now), true
}

// FilterByType returns the fetched events of one type. An empty type or
// "all" returns every event.
func (s *Store) FilterByType(typ string) []models.Event {
	events := s.Events()
	if typ == "" || typ == "all" {
		return events
	}
	out := []models.Event{}
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
