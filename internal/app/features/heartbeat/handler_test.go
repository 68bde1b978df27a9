package heartbeat_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/features/heartbeat"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/memory"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*heartbeat.Handler, *memory.Backend, *testutil.Fixtures) {
	t.Helper()
	b := testutil.NewBackend(t)
	return heartbeat.NewHandler(b.Client(), zap.NewNop()), b, testutil.NewFixtures(t, b)
}

func TestServeHeartbeat_Unauthenticated(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/heartbeat", nil)
	rec := httptest.NewRecorder()

	handler.ServeHeartbeat(rec, req)

	// Unauthenticated heartbeats should return OK (silent fail)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestServeHeartbeat_StampsLastActive(t *testing.T) {
	handler, b, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p := fx.CreateProfile(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	body := `{"page":"/forum"}`
	req := httptest.NewRequest("POST", "/api/heartbeat", strings.NewReader(body))
	req = testutil.WithUser(req, testutil.TestUser{ID: p.ID, Name: p.FullName, Email: p.Email, Role: p.Role})
	rec := httptest.NewRecorder()
	handler.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	got, err := backend.FindOne[models.Profile](ctx, b, backend.From("profiles").Eq("_id", p.ID))
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got.LastActive.IsZero() {
		t.Error("expected last_active to be set")
	}
}

func TestServeHeartbeat_WriteFailureIsSilent(t *testing.T) {
	handler, b, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p := fx.CreateProfile(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")
	b.FailWrites("profiles", errors.New("write refused"))

	req := testutil.WithUser(httptest.NewRequest("POST", "/api/heartbeat", nil),
		testutil.TestUser{ID: p.ID, Email: p.Email, Role: p.Role})
	rec := httptest.NewRecorder()
	handler.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
