package userinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/features/userinfo"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

type response struct {
	Authenticated bool            `json:"authenticated"`
	User          *models.Profile `json:"user"`
}

func serve(t *testing.T, h *userinfo.Handler, req *http.Request) response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeUserInfo(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out response
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestServeUserInfo_SignedOut(t *testing.T) {
	b := testutil.NewBackend(t)
	h := userinfo.NewHandler(b.Client(), zap.NewNop())

	got := serve(t, h, testutil.NewRequest(http.MethodGet, "/auth/me"))
	if got.Authenticated || got.User != nil {
		t.Errorf("expected signed out, got %+v", got)
	}
}

func TestServeUserInfo_SignedIn(t *testing.T) {
	b := testutil.NewBackend(t)
	fx := testutil.NewFixtures(t, b)
	h := userinfo.NewHandler(b.Client(), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleAdmin, "")

	req := testutil.WithUser(testutil.NewRequest(http.MethodGet, "/auth/me"), testutil.UserFor(p, sess))
	got := serve(t, h, req)
	if !got.Authenticated || got.User == nil {
		t.Fatalf("expected signed in, got %+v", got)
	}
	if got.User.ID != p.ID || got.User.Role != models.RoleAdmin {
		t.Errorf("user = %+v", got.User)
	}
}

func TestServeUserInfo_StaleToken(t *testing.T) {
	b := testutil.NewBackend(t)
	fx := testutil.NewFixtures(t, b)
	h := userinfo.NewHandler(b.Client(), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, sess := fx.CreateAccount(ctx, "Ada Lovelace", "ada@uni.ac.uk", models.RoleUser, "")
	if err := b.Auth().SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	req := testutil.WithUser(testutil.NewRequest(http.MethodGet, "/auth/me"), testutil.UserFor(p, sess))
	if got := serve(t, h, req); got.Authenticated {
		t.Errorf("revoked token should not authenticate, got %+v", got)
	}
}
