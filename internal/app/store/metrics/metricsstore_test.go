package metricsstore_test

import (
	"testing"
	"time"

	metricsstore "github.com/dalemusser/freshershub/internal/app/store/metrics"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
)

func TestFetchDashboardCounts_Empty(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts := metricsstore.FetchDashboardCounts(ctx, b)

	if counts != (metricsstore.Counts{}) {
		t.Errorf("expected zero counts, got %+v", counts)
	}
}

func TestFetchDashboardCounts_WithData(t *testing.T) {
	b := testutil.NewBackend(t)
	fx := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := fx.CreateDepartment(ctx, "CS", "Computer Science")
	ada := fx.CreateProfile(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, dept.ID)
	fx.CreateProfile(ctx, "Admin", "admin@uni.ac.uk", models.RoleAdmin, "")
	fx.CreateResource(ctx, dept.ID, "Notes", models.ResourceTypeLink, models.FlowResources, models.StatusPending)
	fx.CreateResource(ctx, dept.ID, "Slides", models.ResourceTypeLink, models.FlowResources, models.StatusApproved)
	fx.CreatePost(ctx, ada.ID, "Hello", time.Now())
	fx.CreateEvent(ctx, "Welcome talk", time.Now().Add(time.Hour))

	counts := metricsstore.FetchDashboardCounts(ctx, b)

	want := metricsstore.Counts{
		Members: 1, Admins: 1, Departments: 1,
		Resources: 2, PendingResources: 1, Posts: 1, Events: 1,
	}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
}

func TestFetchDashboardCounts_ToleratesFailures(t *testing.T) {
	b := testutil.NewBackend(t)
	fx := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateProfile(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	cctx, ccancel := testutil.TestContext()
	ccancel()
	counts := metricsstore.FetchDashboardCounts(cctx, b)
	if counts != (metricsstore.Counts{}) {
		t.Errorf("failed counts should read as zero, got %+v", counts)
	}
}
