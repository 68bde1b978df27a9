package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID           string
	Name         string
	Email        string
	Role         string
	DepartmentID string
	AccessToken  string
}

// UserFor builds a TestUser from a fixture profile and its session.
func UserFor(p models.Profile, sess *backend.Session) TestUser {
	u := TestUser{ID: p.ID, Name: p.FullName, Email: p.Email, Role: p.Role, DepartmentID: p.DepartmentID}
	if sess != nil {
		u.AccessToken = sess.AccessToken
	}
	return u
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		AccessToken:  user.AccessToken,
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request with a JSON body.
func NewJSONRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// UploadFile describes the file part of a multipart test request.
type UploadFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// NewMultipartRequest builds a multipart/form-data request from fields and
// an optional file.
func NewMultipartRequest(method, target string, fields map[string]string, file *UploadFile) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.Field+`"; filename="`+file.Name+`"`)
		if file.ContentType != "" {
			h.Set("Content-Type", file.ContentType)
		}
		part, _ := mw.CreatePart(h)
		_, _ = io.Copy(part, bytes.NewReader(file.Data))
	}
	_ = mw.Close()

	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}
