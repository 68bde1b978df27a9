package planstore_test

import (
	"errors"
	"testing"
	"time"

	planstore "github.com/dalemusser/freshershub/internal/app/store/plans"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*planstore.Store, *testutil.Fixtures) {
	t.Helper()
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, "")
	return planstore.New(f.Client(sess), zap.NewNop()), f
}

func TestPlans_CRUD(t *testing.T) {
	store, f := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, err := store.CreatePlan(ctx, planstore.PlanInput{Title: " Revise calculus ", StartTime: monday, Color: "#ff8800"})
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if p.Title != "Revise calculus" || !p.EndTime.Equal(monday.Add(time.Hour)) {
		t.Errorf("plan = %+v", p)
	}
	if got := store.Plans(); len(got) != 1 || got[0].ID != p.ID {
		t.Fatalf("plans = %+v", got)
	}

	if err := store.UpdatePlan(ctx, p.ID, planstore.PlanInput{Title: "Revise algebra", StartTime: monday.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdatePlan failed: %v", err)
	}
	if got := store.Plans()[0]; got.Title != "Revise algebra" || !got.StartTime.Equal(monday.Add(time.Hour)) {
		t.Errorf("updated plan = %+v", got)
	}

	done, err := store.ToggleComplete(ctx, p.ID)
	if err != nil || !done {
		t.Fatalf("ToggleComplete = %v, %v", done, err)
	}
	if !store.Plans()[0].Completed {
		t.Error("expected snapshot to be completed")
	}
	done, _ = store.ToggleComplete(ctx, p.ID)
	if done {
		t.Error("expected second toggle to reopen the plan")
	}

	if err := store.DeletePlan(ctx, p.ID); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}
	if len(store.Plans()) != 0 {
		t.Error("expected no plans after delete")
	}
	if n := f.CountRows(ctx, planstore.PlansTable, "", nil); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestPlans_RefetchFailureKeepsWrite(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, "")
	store := planstore.New(f.Client(sess), zap.NewNop())
	b.FailReads(planstore.PlansTable, errors.New("read timeout"))

	p, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "Revise", StartTime: monday})
	if err != nil || p == nil {
		t.Fatalf("CreatePlan = %+v, %v", p, err)
	}
	if st := store.Snapshot(); st.Loading || st.Error == "" {
		t.Errorf("expected the re-fetch failure on Error: %+v", st)
	}
	if err := store.UpdatePlan(ctx, p.ID, planstore.PlanInput{Title: "Revise more", StartTime: monday}); err != nil {
		t.Fatalf("UpdatePlan failed: %v", err)
	}
	if err := store.DeletePlan(ctx, p.ID); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}

	b.FailReads(planstore.PlansTable, nil)
	if n := f.CountRows(ctx, planstore.PlansTable, "", nil); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestPlans_ScopedToSessionUser(t *testing.T) {
	store, f := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, otherSess := f.CreateAccount(ctx, "Grace Hopper", "grace@example.com", models.RoleUser, "")
	other := planstore.New(f.Client(otherSess), zap.NewNop())
	theirs, err := other.CreatePlan(ctx, planstore.PlanInput{Title: "Grace's plan", StartTime: monday})
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}

	if err := store.FetchPlans(ctx); err != nil {
		t.Fatalf("FetchPlans failed: %v", err)
	}
	if len(store.Plans()) != 0 {
		t.Errorf("saw another user's plans: %+v", store.Plans())
	}
	if err := store.DeletePlan(ctx, theirs.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another user's plan, got %v", err)
	}
	if _, err := store.ToggleComplete(ctx, theirs.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound toggling another user's plan, got %v", err)
	}
	if err := store.UpdatePlan(ctx, theirs.ID, planstore.PlanInput{Title: "mine now", StartTime: monday}); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating another user's plan, got %v", err)
	}
}

func TestPlans_RequireSession(t *testing.T) {
	b := testutil.NewBackend(t)
	store := planstore.New(b.Client(), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.FetchPlans(ctx); !errors.Is(err, backend.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if _, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "x", StartTime: monday}); !errors.Is(err, backend.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestPlans_Validation(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	late := monday.Add(time.Hour)
	tests := []struct {
		name  string
		in    planstore.PlanInput
		field string
	}{
		{"missing title", planstore.PlanInput{StartTime: monday}, "title"},
		{"end before start", planstore.PlanInput{Title: "x", StartTime: monday, EndTime: monday.Add(-time.Minute)}, "end_time"},
		{"bad colour", planstore.PlanInput{Title: "x", StartTime: monday, Color: "orange"}, "color"},
		{"reminder after start", planstore.PlanInput{Title: "x", StartTime: monday, ReminderAt: &late}, "reminder_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreatePlan(ctx, tt.in)
			var ve *planstore.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Result.Field(tt.field) == "" {
				t.Errorf("expected %s error, got %q", tt.field, ve.Result.All())
			}
		})
	}
}

func TestDueReminders(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := monday.Add(-30 * time.Minute)
	due := monday.Add(-time.Hour)
	notYet := monday.Add(-10 * time.Minute)

	dueP, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "due", StartTime: monday, ReminderAt: &due})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "not yet", StartTime: monday, ReminderAt: &notYet}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "no reminder", StartTime: monday}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	donePlan, err := store.CreatePlan(ctx, planstore.PlanInput{Title: "done", StartTime: monday, ReminderAt: &due})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := store.ToggleComplete(ctx, donePlan.ID); err != nil {
		t.Fatalf("ToggleComplete: %v", err)
	}

	got := store.DueReminders(now)
	if len(got) != 1 || got[0].ID != dueP.ID {
		t.Errorf("DueReminders = %+v", got)
	}
	if got := store.DueReminders(monday.Add(time.Minute)); len(got) != 0 {
		t.Errorf("started plans should not remind, got %d", len(got))
	}
}
