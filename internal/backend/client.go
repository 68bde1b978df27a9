package backend

import (
	"context"
	"sync"
)

// Client is a configured handle to the hosted backend plus the session of
// the user it acts for. The services are shared; the session is not.
type Client struct {
	Auth     AuthService
	DB       Database
	Storage  Storage
	Realtime Realtime

	mu      sync.RWMutex
	session *Session
}

// NewClient bundles the four backend services into a signed-out client.
func NewClient(auth AuthService, db Database, storage Storage, rt Realtime) *Client {
	return &Client{Auth: auth, DB: db, Storage: storage, Realtime: rt}
}

// WithSession returns a client sharing c's services but acting for s.
func (c *Client) WithSession(s *Session) *Client {
	return &Client{Auth: c.Auth, DB: c.DB, Storage: c.Storage, Realtime: c.Realtime, session: s}
}

// Session returns the current session or nil when signed out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the current session; nil signs the client out.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// CurrentUser resolves the session's access token against the auth service.
// It returns ErrNoSession when the client is signed out.
func (c *Client) CurrentUser(ctx context.Context) (AuthUser, error) {
	s := c.Session()
	if s == nil || s.AccessToken == "" {
		return AuthUser{}, ErrNoSession
	}
	return c.Auth.User(ctx, s.AccessToken)
}
