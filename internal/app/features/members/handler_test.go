package members_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/freshershub/internal/app/features/members"
	"github.com/dalemusser/freshershub/internal/app/store/audit"
	userstore "github.com/dalemusser/freshershub/internal/app/store/users"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/export"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

type env struct {
	fx     *testutil.Fixtures
	audit  *audit.Store
	admin  testutil.TestUser
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	b := testutil.NewBackend(t)
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	as := audit.New(b)
	h := members.NewHandler(b.Client(), auditlog.New(as, logger, auditlog.Config{Auth: "db", Admin: "db"}), logger)
	e := &env{fx: testutil.NewFixtures(t, b), audit: as, router: members.Routes(h, sm)}
	e.admin = e.account(t, "Admin", "admin@uni.ac.uk", models.RoleAdmin)
	return e
}

func (e *env) account(t *testing.T, name, email, role string) testutil.TestUser {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := e.fx.CreateAccount(ctx, name, email, role, "")
	return testutil.UserFor(p, sess)
}

func (e *env) profile(t *testing.T, name, email string) models.Profile {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	return e.fx.CreateProfile(ctx, name, email, models.RoleUser, "")
}

func (e *env) do(req *http.Request, user *testutil.TestUser) *httptest.ResponseRecorder {
	if user != nil {
		req = testutil.WithUser(req, *user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_AdminOnly(t *testing.T) {
	e := newEnv(t)
	u := e.account(t, "Ada", "ada@uni.ac.uk", models.RoleUser)
	if rec := e.do(testutil.NewRequest(http.MethodGet, "/"), &u); rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if rec := e.do(testutil.NewRequest(http.MethodGet, "/"), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestServeList_Search(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")
	e.profile(t, "Charles Babbage", "cb@uni.ac.uk")

	rec := e.do(testutil.NewRequest(http.MethodGet, "/?q=lovelace"), &e.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Users []models.Profile `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Users) != 1 || out.Users[0].Email != "ada@uni.ac.uk" {
		t.Fatalf("users = %+v", out.Users)
	}
}

func TestHandleRole(t *testing.T) {
	e := newEnv(t)
	p := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if rec := e.do(testutil.NewJSONRequest(http.MethodPut, "/"+p.ID+"/role", `{"role":"owner"}`), &e.admin); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", rec.Code)
	}
	if rec := e.do(testutil.NewJSONRequest(http.MethodPut, "/"+p.ID+"/role", `{"role":"admin"}`), &e.admin); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if n := e.fx.CountRows(ctx, userstore.ProfilesTable, "role", models.RoleAdmin); n != 2 {
		t.Errorf("admins = %d, want 2", n)
	}
	if n := e.fx.CountRows(ctx, notify.NotificationsTable, "user_id", p.ID); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestHandleWarn_AndList(t *testing.T) {
	e := newEnv(t)
	p := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")

	if rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/"+p.ID+"/warnings", `{"reason":""}`), &e.admin); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty reason status = %d, want 422", rec.Code)
	}
	if rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/"+p.ID+"/warnings", `{"reason":"spam"}`), &e.admin); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := e.do(testutil.NewRequest(http.MethodGet, "/"+p.ID+"/warnings"), &e.admin)
	var out struct {
		Warnings []models.Warning `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Reason != "spam" {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
}

func TestHandleRestrict(t *testing.T) {
	e := newEnv(t)
	p := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")

	decode := func(rec *httptest.ResponseRecorder) bool {
		t.Helper()
		var out struct {
			Restricted bool `json:"restricted"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v (%s)", err, rec.Body.String())
		}
		return out.Restricted
	}

	if !decode(e.do(testutil.NewJSONRequest(http.MethodPut, "/"+p.ID+"/restricted", `{}`), &e.admin)) {
		t.Error("toggle should restrict an unrestricted member")
	}
	if decode(e.do(testutil.NewJSONRequest(http.MethodPut, "/"+p.ID+"/restricted", `{"restricted":false}`), &e.admin)) {
		t.Error("explicit false should lift the restriction")
	}
	rec := e.do(testutil.NewJSONRequest(http.MethodPut, "/"+e.admin.ID+"/restricted", `{"restricted":true}`), &e.admin)
	if rec.Code != http.StatusConflict {
		t.Errorf("self restrict status = %d, want 409", rec.Code)
	}
}

func TestHandleVisibleAndDelete(t *testing.T) {
	e := newEnv(t)
	p := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if rec := e.do(testutil.NewJSONRequest(http.MethodPut, "/"+p.ID+"/visible", `{"visible":false}`), &e.admin); rec.Code != http.StatusNoContent {
		t.Fatalf("visible status = %d", rec.Code)
	}
	if n := e.fx.CountRows(ctx, userstore.ProfilesTable, "is_visible", false); n != 1 {
		t.Errorf("hidden profiles = %d, want 1", n)
	}

	if rec := e.do(testutil.NewRequest(http.MethodDelete, "/"+e.admin.ID), &e.admin); rec.Code != http.StatusConflict {
		t.Errorf("self delete status = %d, want 409", rec.Code)
	}
	if rec := e.do(testutil.NewRequest(http.MethodDelete, "/"+p.ID), &e.admin); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	if n := e.fx.CountRows(ctx, userstore.ProfilesTable, "_id", p.ID); n != 0 {
		t.Error("profile should be gone")
	}
	if rec := e.do(testutil.NewRequest(http.MethodDelete, "/"+p.ID), &e.admin); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleBroadcast(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")

	rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/broadcast", `{"message":"Welcome week starts Monday"}`), &e.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Recipients int `json:"recipients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Recipients != 2 {
		t.Errorf("recipients = %d, want 2", out.Recipients)
	}
}

func TestHandleBulk(t *testing.T) {
	e := newEnv(t)
	a := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")
	b := e.profile(t, "Charles Babbage", "cb@uni.ac.uk")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	body := `{"ids":["` + a.ID + `","` + b.ID + `","` + a.ID + `","` + e.admin.ID + `"],"action":"restrict"}`
	rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/bulk", body), &e.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res userstore.BulkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Succeeded) != 2 {
		t.Errorf("succeeded = %v", res.Succeeded)
	}
	if _, ok := res.Failed[e.admin.ID]; !ok {
		t.Errorf("expected the admin's own id to fail, got %v", res.Failed)
	}
	if n := e.fx.CountRows(ctx, userstore.ProfilesTable, "is_restricted", true); n != 2 {
		t.Errorf("restricted = %d, want 2", n)
	}

	if rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/bulk", `{"ids":[],"action":"delete"}`), &e.admin); rec.Code != http.StatusBadRequest {
		t.Errorf("empty selection status = %d, want 400", rec.Code)
	}
	if rec := e.do(testutil.NewJSONRequest(http.MethodPost, "/bulk", `{"ids":["x"],"action":"archive"}`), &e.admin); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", rec.Code)
	}
}

func TestServeAnalytics(t *testing.T) {
	e := newEnv(t)
	p := e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreatePost(ctx, p.ID, "Hello", time.Now().Add(-48*time.Hour))
	e.fx.CreatePost(ctx, p.ID, "Again", time.Now())

	rec := e.do(testutil.NewRequest(http.MethodGet, "/"+p.ID+"/analytics"), &e.admin)
	var a userstore.Analytics
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.TotalPosts != 2 || a.LastActivity == nil {
		t.Errorf("analytics = %+v", a)
	}
}

func TestServeExport(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")

	rec := e.do(testutil.NewRequest(http.MethodGet, "/export.xlsx"), &e.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("content type = %q", ct)
	}
	// xlsx files are zip archives
	if b := rec.Body.Bytes(); len(b) < 2 || b[0] != 'P' || b[1] != 'K' {
		t.Error("expected a zip payload")
	}
}

func TestServeStats(t *testing.T) {
	e := newEnv(t)
	e.profile(t, "Ada Lovelace", "ada@uni.ac.uk")

	rec := e.do(testutil.NewRequest(http.MethodGet, "/stats"), &e.admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var counts struct {
		Members int64 `json:"members"`
		Admins  int64 `json:"admins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts.Members != 1 || counts.Admins != 1 {
		t.Errorf("counts = %+v", counts)
	}
}
