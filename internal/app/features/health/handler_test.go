package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/features/health"
	"go.uber.org/zap"
)

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Checks  map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"checks"`
}

func ok(context.Context) error { return nil }

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, resp
}

func TestServe_AllHealthy(t *testing.T) {
	h := health.NewHandler(zap.NewNop(), health.Check{Name: "database", Ping: ok})
	rec, resp := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if resp.Status != "ok" || resp.Checks["database"].Status != "ok" {
		t.Errorf("response = %+v", resp)
	}
}

func TestServe_DatabaseDown(t *testing.T) {
	h := health.NewHandler(zap.NewNop(),
		health.Check{Name: "database", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec, resp := serve(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if resp.Status != "error" || resp.Message != "database unavailable" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Checks["database"].Error != "connection refused" {
		t.Errorf("database check = %+v", resp.Checks["database"])
	}
}

func TestServe_OptionalFailureStaysHealthy(t *testing.T) {
	h := health.NewHandler(zap.NewNop(),
		health.Check{Name: "database", Ping: ok},
		health.Check{Name: "cache", Optional: true, Ping: func(context.Context) error { return errors.New("no redis") }},
	)
	rec, resp := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if resp.Checks["cache"].Status != "error" {
		t.Errorf("cache check = %+v", resp.Checks["cache"])
	}
}
