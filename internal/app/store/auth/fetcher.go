package authstore

import (
	"context"
	"errors"

	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/normalize"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
)

// Fetcher implements auth.UserFetcher: it re-validates the session token and
// loads the profile on each request.
type Fetcher struct {
	client *backend.Client
}

// NewFetcher creates a UserFetcher over client's services.
func NewFetcher(client *backend.Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchUser returns nil, nil when the token is no longer valid, belongs to a
// different user, or has no profile.
func (f *Fetcher) FetchUser(ctx context.Context, accessToken, userID string) (*auth.SessionUser, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	c := f.client.WithSession(&backend.Session{AccessToken: accessToken})
	au, err := c.CurrentUser(ctx)
	if errors.Is(err, backend.ErrInvalidToken) || errors.Is(err, backend.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if au.ID != userID {
		return nil, nil
	}

	q := backend.From(ProfilesTable).Eq("_id", userID).
		Select("full_name", "email", "role", "department_id", "is_restricted")
	p, err := backend.FindOne[models.Profile](ctx, c.DB, q)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &auth.SessionUser{
		ID:           p.ID,
		Name:         p.FullName,
		Email:        p.Email,
		Role:         normalize.Role(p.Role),
		DepartmentID: p.DepartmentID,
		IsRestricted: p.IsRestricted,
		AccessToken:  accessToken,
	}, nil
}
