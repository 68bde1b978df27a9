package profile_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/features/profile"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/memory"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*profile.Handler, *memory.Backend, *testutil.Fixtures) {
	t.Helper()
	b := testutil.NewBackend(t)
	return profile.NewHandler(b.Client(), 0, zap.NewNop()), b, testutil.NewFixtures(t, b)
}

func TestServeProfile_Unauthenticated(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeProfile(rec, testutil.NewRequest(http.MethodGet, "/profile"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleUpdate(t *testing.T) {
	h, b, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	req := testutil.WithUser(testutil.NewJSONRequest(http.MethodPatch, "/profile", `{"full_name":"  Ada   King "}`), testutil.UserFor(p, sess))
	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.Profile
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FullName != "Ada King" {
		t.Errorf("FullName = %q", got.FullName)
	}

	stored, err := backend.FindOne[models.Profile](ctx, b, backend.From("profiles").Eq("_id", p.ID))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if stored.FullName != "Ada King" || stored.FullNameCI != text.Fold("Ada King") {
		t.Errorf("stored = %q / %q", stored.FullName, stored.FullNameCI)
	}
}

func TestHandleUpdate_Invalid(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	long := strings.Repeat("x", 200)
	req := testutil.WithUser(testutil.NewJSONRequest(http.MethodPatch, "/profile", `{"full_name":"`+long+`"}`), testutil.UserFor(p, sess))
	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleAvatar(t *testing.T) {
	h, b, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	file := &testutil.UploadFile{Field: "avatar", Name: "me.PNG", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nrest")}
	req := testutil.WithUser(testutil.NewMultipartRequest(http.MethodPost, "/profile/avatar", nil, file), testutil.UserFor(p, sess))
	rec := httptest.NewRecorder()
	h.HandleAvatar(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	prefix := "http://localhost:8080/files/avatars/"
	if !strings.HasPrefix(got.AvatarURL, prefix) || !strings.HasSuffix(got.AvatarURL, ".png") {
		t.Fatalf("AvatarURL = %q", got.AvatarURL)
	}
	if !b.Storage().Has("avatars", strings.TrimPrefix(got.AvatarURL, prefix)) {
		t.Error("avatar object not stored")
	}
}

func TestHandleAvatar_RejectsNonImage(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	file := &testutil.UploadFile{Field: "avatar", Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
	req := testutil.WithUser(testutil.NewMultipartRequest(http.MethodPost, "/profile/avatar", nil, file), testutil.UserFor(p, sess))
	rec := httptest.NewRecorder()
	h.HandleAvatar(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestHandleAvatar_MissingFile(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")

	req := testutil.WithUser(testutil.NewMultipartRequest(http.MethodPost, "/profile/avatar", map[string]string{"x": "y"}, nil), testutil.UserFor(p, sess))
	rec := httptest.NewRecorder()
	h.HandleAvatar(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
