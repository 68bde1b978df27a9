// Package backend defines the contract the portal uses to reach its hosted
// backend: identity, table storage, object storage and row-level change
// feeds. Stores depend on these interfaces only; concrete implementations
// live in the mongobackend, s3storage and memory subpackages.
package backend

import (
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNotFound is returned by single-row reads that matched nothing.
	ErrNotFound = errors.New("backend: row not found")
	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession = errors.New("backend: not signed in")
	// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("backend: invalid email or password")
	// ErrEmailTaken is returned by SignUp when the email already has an identity.
	ErrEmailTaken = errors.New("backend: email already registered")
	// ErrInvalidToken is returned for expired, malformed or revoked access tokens.
	ErrInvalidToken = errors.New("backend: invalid access token")
	// ErrObjectNotFound is returned by Storage.Download for a missing object.
	ErrObjectNotFound = errors.New("backend: object not found")
	// ErrConflict is returned when a write violates a unique key.
	ErrConflict = errors.New("backend: unique key conflict")
)

// AuthUser is the identity record owned by the auth service.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is what a successful sign-in or sign-up hands back.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        AuthUser  `json:"user"`
}

// AuthService authenticates users by email and password.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (AuthUser, error)
}

// Set is the field map applied by Database.Update.
type Set map[string]any

// Database is the table-style datastore.
type Database interface {
	Find(ctx context.Context, q *Query) ([]bson.Raw, error)
	Count(ctx context.Context, q *Query) (int64, error)
	// Insert stores docs in table and returns their ids. Documents without
	// an _id are assigned a UUID.
	Insert(ctx context.Context, table string, docs ...any) ([]string, error)
	Update(ctx context.Context, q *Query, set Set) (int64, error)
	Increment(ctx context.Context, q *Query, field string, by int64) (int64, error)
	Delete(ctx context.Context, q *Query) (int64, error)
}

// Storage is the object store for uploaded files and avatars.
type Storage interface {
	// Upload writes the object and returns its storage path within bucket.
	Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) (string, error)
	PublicURL(bucket, path string) string
	// Download opens the object and reports its content type.
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// Change operations carried by ChangeEvent.Op.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent describes one row-level change on a table.
type ChangeEvent struct {
	Table string
	Op    string
	ID    string
}

// Realtime delivers row-level change events for a table.
type Realtime interface {
	Subscribe(ctx context.Context, table string) (*Subscription, error)
}
