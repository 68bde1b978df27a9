package auditlog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/store/audit"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, models.AuditEvent{EventType: "test"})
	logger.SignInSuccess(ctx, "user-1", "a@uni.ac.uk")
	logger.SignedOut(ctx, "user-1")
	logger.RoleChanged(ctx, "admin-1", "user-1", models.RoleUser, models.RoleAdmin)
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "off"})
	logger.SignInSuccess(ctx, "user-1", "a@uni.ac.uk")
	logger.WarningIssued(ctx, "admin-1", "user-1", "spam")

	n, err := store.Count(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events when config is 'off', got %d", n)
	}
}

func TestLogger_Log_ConfigLogOnly(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "log", Admin: "log"})
	logger.SignedUp(ctx, "user-1", "a@uni.ac.uk")

	n, err := store.Count(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("log-only config should not write rows, got %d", n)
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Admin: "db"})
	logger.SignInSuccess(ctx, "user-1", "a@uni.ac.uk")

	events, err := store.GetByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != audit.EventSignInSuccess {
		t.Errorf("EventType = %q", events[0].EventType)
	}
	if events[0].Details["email"] != "a@uni.ac.uk" {
		t.Errorf("email detail = %q", events[0].Details["email"])
	}
}

func TestLogger_CategoryFilteredByConfig(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "all"})
	logger.SignInFailed(ctx, "a@uni.ac.uk", "invalid credentials")
	logger.RestrictionChanged(ctx, "admin-1", "user-1", true)

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the admin event, got %d", len(events))
	}
	e := events[0]
	if e.Category != audit.CategoryAdmin || e.EventType != audit.EventUserRestricted {
		t.Errorf("got %s/%s", e.Category, e.EventType)
	}
	if e.ActorID != "admin-1" || e.UserID != "user-1" {
		t.Errorf("actor/user = %q/%q", e.ActorID, e.UserID)
	}
}

func TestLogger_RecordsIPFromContext(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Admin: "db"})
	logger.SignedOut(auditlog.WithClientIP(ctx, "203.0.113.7"), "user-1")

	events, err := store.GetByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 || events[0].IP != "203.0.113.7" {
		t.Fatalf("expected IP from context, got %+v", events)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"x-forwarded-for first hop", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.1"},
		{"x-real-ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9:5555"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := auditlog.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_SetsClientIP(t *testing.T) {
	db := testutil.NewBackend(t)
	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Admin: "db"})

	var seen context.Context
	h := auditlog.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	h.ServeHTTP(httptest.NewRecorder(), req)

	logger.SignedOut(seen, "user-9")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	events, err := store.GetByUser(ctx, "user-9", 1)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 || events[0].IP != "198.51.100.4" {
		t.Fatalf("expected middleware IP, got %+v", events)
	}
}

func TestValidMode(t *testing.T) {
	for _, v := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidMode(v) {
			t.Errorf("ValidMode(%q) = false", v)
		}
	}
	if auditlog.ValidMode("verbose") {
		t.Error("ValidMode(verbose) = true")
	}
}
