package files_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/features/files"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

func TestServeFile(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := b.Storage().Upload(ctx, "resources", "dept-1/notes.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	router := files.Routes(files.NewHandler(b.Storage(), zap.NewNop(), "resources", "avatars"))

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"stored object", "/resources/dept-1/notes.pdf", http.StatusOK},
		{"missing object", "/resources/dept-1/other.pdf", http.StatusNotFound},
		{"unknown bucket", "/secrets/dept-1/notes.pdf", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
					t.Errorf("Content-Type = %q", ct)
				}
				if rec.Body.String() != "%PDF-1.4" {
					t.Errorf("body = %q", rec.Body.String())
				}
			}
		})
	}
}
