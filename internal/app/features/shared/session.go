// Package shared holds request helpers used by every feature.
package shared

import (
	"errors"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/backend"
)

// Session returns the backend session of the signed-in request user, or nil.
func Session(r *http.Request) *backend.Session {
	u, ok := auth.CurrentUser(r)
	if !ok || u.AccessToken == "" {
		return nil
	}
	return &backend.Session{
		AccessToken: u.AccessToken,
		User:        backend.AuthUser{ID: u.ID, Email: u.Email},
	}
}

// Client binds base to the request user's session. Stores built on the
// result act as that user.
func Client(base *backend.Client, r *http.Request) *backend.Client {
	return base.WithSession(Session(r))
}

// ErrForbidden is returned when the signed-in user may not touch a record.
var ErrForbidden = errors.New("not allowed")

func init() {
	respond.Register(http.StatusForbidden, ErrForbidden)
}

// CanModify reports whether the request user owns ownerID's record or is an
// admin.
func CanModify(r *http.Request, ownerID string) bool {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	return u.IsAdmin() || (ownerID != "" && u.ID == ownerID)
}
