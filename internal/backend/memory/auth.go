package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type identity struct {
	id    string
	email string
	hash  string
}

// Auth is the in-memory identity service.
type Auth struct {
	issuer *tokens.Issuer

	mu      sync.Mutex
	users   map[string]identity // keyed by lowercase email
	revoked map[string]bool
	calls   int
}

func newAuth(issuer *tokens.Issuer) *Auth {
	return &Auth{issuer: issuer, users: map[string]identity{}, revoked: map[string]bool{}}
}

// Calls returns how many SignUp/SignIn requests reached the service.
func (a *Auth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	a.mu.Lock()
	a.calls++
	if _, exists := a.users[key]; exists {
		a.mu.Unlock()
		return nil, backend.ErrEmailTaken
	}
	a.mu.Unlock()

	hash, err := tokens.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := identity{id: uuid.NewString(), email: key, hash: hash}

	a.mu.Lock()
	if _, exists := a.users[key]; exists {
		a.mu.Unlock()
		return nil, backend.ErrEmailTaken
	}
	a.users[key] = u
	a.mu.Unlock()

	return a.session(u)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	a.mu.Lock()
	a.calls++
	u, ok := a.users[key]
	a.mu.Unlock()
	if !ok {
		return nil, backend.ErrInvalidCredentials
	}
	match, err := tokens.CheckPassword(u.hash, password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, backend.ErrInvalidCredentials
	}
	return a.session(u)
}

func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	claims, err := a.issuer.Verify(accessToken)
	if err != nil {
		return backend.ErrInvalidToken
	}
	a.mu.Lock()
	a.revoked[claims.ID] = true
	a.mu.Unlock()
	return nil
}

func (a *Auth) User(ctx context.Context, accessToken string) (backend.AuthUser, error) {
	claims, err := a.issuer.Verify(accessToken)
	if err != nil {
		return backend.AuthUser{}, backend.ErrInvalidToken
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked[claims.ID] {
		return backend.AuthUser{}, backend.ErrInvalidToken
	}
	return backend.AuthUser{ID: claims.Subject, Email: claims.Email}, nil
}

func (a *Auth) session(u identity) (*backend.Session, error) {
	tok, _, exp, err := a.issuer.Issue(u.id, u.email)
	if err != nil {
		return nil, err
	}
	return &backend.Session{
		AccessToken: tok,
		ExpiresAt:   exp,
		User:        backend.AuthUser{ID: u.id, Email: u.email},
	}, nil
}
