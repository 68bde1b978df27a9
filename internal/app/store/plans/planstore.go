// Package planstore holds a user's private study plan entries.
package planstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const PlansTable = "plans"

var ErrInvalidInput = errors.New("invalid input")

// ValidationError carries per-field messages for a rejected plan.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

// PlanInput is a plan entry as submitted.
type PlanInput struct {
	Title       string     `json:"title" validate:"required,max=200" label:"Title"`
	Description string     `json:"description" validate:"max=2000" label:"Description"`
	StartTime   time.Time  `json:"start_time" validate:"required" label:"Start"`
	EndTime     time.Time  `json:"end_time" validate:"gtfield=StartTime" label:"End"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty" label:"Reminder"`
	Color       string     `json:"color" validate:"omitempty,hexcolor" label:"Colour"`
}

func validate(in *PlanInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.StartTime = in.StartTime.UTC()
	if in.EndTime.IsZero() && !in.StartTime.IsZero() {
		in.EndTime = in.StartTime.Add(time.Hour)
	}
	in.EndTime = in.EndTime.UTC()
	if in.ReminderAt != nil {
		r := in.ReminderAt.UTC()
		in.ReminderAt = &r
	}

	res := inputval.Validate(*in)
	if in.ReminderAt != nil && in.ReminderAt.After(in.StartTime) {
		res.Add("reminder_at", "Reminder must not be after the start.")
	}
	if res.HasErrors() {
		return &ValidationError{Result: res}
	}
	return nil
}

// State is a point-in-time copy of the store.
type State struct {
	Plans   []models.Plan `json:"plans"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

// Store holds the session user's plans, ordered by start time. Every
// operation is scoped to that user.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	plans   []models.Plan
	loading bool
	err     string
}

// New builds a store acting through client.
func New(client *backend.Client, logger *zap.Logger) *Store {
	return &Store{client: client, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Plans: append([]models.Plan{}, s.plans...), Loading: s.loading, Error: s.err}
}

// Plans returns the last fetched plans.
func (s *Store) Plans() []models.Plan { return s.Snapshot().Plans }

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("plans", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// settle ends op after its write committed. A failed re-fetch is logged and
// kept on Error, but the op still succeeds.
func (s *Store) settle(op string, refetchErr error) {
	metrics.Op("plans", op, nil)
	if refetchErr != nil {
		s.log.Warn("plans re-fetch failed after write",
			zap.String("op", op), zap.Error(refetchErr))
	}
	s.mu.Lock()
	s.loading = false
	if refetchErr != nil {
		s.err = refetchErr.Error()
	}
	s.mu.Unlock()
}

func (s *Store) userID() (string, error) {
	sess := s.client.Session()
	if sess == nil || sess.AccessToken == "" || sess.User.ID == "" {
		return "", backend.ErrNoSession
	}
	return sess.User.ID, nil
}

func own(uid string) *backend.Query {
	return backend.From(PlansTable).Eq("user_id", uid)
}

// FetchPlans replaces the list with the user's plans.
func (s *Store) FetchPlans(ctx context.Context) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	s.begin()
	return s.end("fetch", s.refresh(ctx, uid))
}

func (s *Store) refresh(ctx context.Context, uid string) error {
	list, err := backend.FindAll[models.Plan](ctx, s.client.DB, own(uid).OrderBy("start_time", false))
	if err != nil {
		return fmt.Errorf("fetch plans: %w", err)
	}
	s.mu.Lock()
	s.plans = list
	s.mu.Unlock()
	return nil
}

// CreatePlan adds a plan and re-fetches.
func (s *Store) CreatePlan(ctx context.Context, in PlanInput) (*models.Plan, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	s.begin()
	p := models.Plan{
		ID:          uuid.NewString(),
		UserID:      uid,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		ReminderAt:  in.ReminderAt,
		Color:       in.Color,
		CreatedAt:   s.now(),
	}
	if _, err := s.client.DB.Insert(ctx, PlansTable, p); err != nil {
		return nil, s.end("create", fmt.Errorf("create plan: %w", err))
	}
	s.settle("create", s.refresh(ctx, uid))
	return &p, nil
}

// UpdatePlan replaces a plan's fields and re-fetches.
func (s *Store) UpdatePlan(ctx context.Context, id string, in PlanInput) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	if err := validate(&in); err != nil {
		return err
	}
	s.begin()
	set := backend.Set{
		"title":       in.Title,
		"description": strings.TrimSpace(in.Description),
		"start_time":  in.StartTime,
		"end_time":    in.EndTime,
		"reminder_at": in.ReminderAt,
		"color":       in.Color,
	}
	n, err := s.client.DB.Update(ctx, own(uid).Eq("_id", id), set)
	if err != nil {
		return s.end("update", fmt.Errorf("update plan: %w", err))
	}
	if n == 0 {
		return s.end("update", backend.ErrNotFound)
	}
	s.settle("update", s.refresh(ctx, uid))
	return nil
}

// ToggleComplete flips a plan's completed flag and returns the new value.
func (s *Store) ToggleComplete(ctx context.Context, id string) (bool, error) {
	uid, err := s.userID()
	if err != nil {
		return false, err
	}
	s.begin()
	p, err := backend.FindOne[models.Plan](ctx, s.client.DB, own(uid).Eq("_id", id))
	if err != nil {
		return false, s.end("toggle", err)
	}
	done := !p.Completed
	if _, err := s.client.DB.Update(ctx, own(uid).Eq("_id", id), backend.Set{"completed": done}); err != nil {
		return false, s.end("toggle", fmt.Errorf("toggle plan: %w", err))
	}
	s.mu.Lock()
	for i := range s.plans {
		if s.plans[i].ID == id {
			s.plans[i].Completed = done
		}
	}
	s.mu.Unlock()
	return done, s.end("toggle", nil)
}

// DeletePlan removes a plan and re-fetches.
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	s.begin()
	n, err := s.client.DB.Delete(ctx, own(uid).Eq("_id", id))
	if err != nil {
		return s.end("delete", fmt.Errorf("delete plan: %w", err))
	}
	if n == 0 {
		return s.end("delete", backend.ErrNotFound)
	}
	s.settle("delete", s.refresh(ctx, uid))
	return nil
}

// DueReminders returns unfinished plans whose reminder time has passed but
// which have not started yet.
func (s *Store) DueReminders(now time.Time) []models.Plan {
	out := []models.Plan{}
	for _, p := range s.Plans() {
		if p.Completed || p.ReminderAt == nil {
			continue
		}
		if !p.ReminderAt.After(now) && p.StartTime.After(now) {
			out = append(out, p)
		}
	}
	return out
}
