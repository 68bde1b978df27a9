package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/memory"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TestSecret signs access tokens in tests.
const TestSecret = "test-secret-0123456789abcdef-0123456789"

// TestContext returns a context with a generous timeout for store calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// NewBackend returns an empty in-memory backend.
func NewBackend(t *testing.T) *memory.Backend {
	t.Helper()
	iss, err := tokens.NewIssuer(TestSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return memory.New(iss, "http://localhost:8080")
}

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	b *memory.Backend
	t *testing.T
}

// NewFixtures creates a new Fixtures instance for the given backend.
func NewFixtures(t *testing.T, b *memory.Backend) *Fixtures {
	t.Helper()
	return &Fixtures{b: b, t: t}
}

// Backend returns the underlying backend for direct access in tests.
func (f *Fixtures) Backend() *memory.Backend {
	return f.b
}

// CreateDepartment inserts a department.
func (f *Fixtures) CreateDepartment(ctx context.Context, code, name string) models.Department {
	f.t.Helper()
	d := models.Department{ID: uuid.NewString(), Code: code, Name: name}
	if _, err := f.b.Insert(ctx, "departments", d); err != nil {
		f.t.Fatalf("failed to create test department: %v", err)
	}
	return d
}

// CreateProfile inserts a profile row without an auth identity.
func (f *Fixtures) CreateProfile(ctx context.Context, fullName, email, role, departmentID string) models.Profile {
	f.t.Helper()
	return f.insertProfile(ctx, uuid.NewString(), fullName, email, role, departmentID)
}

func (f *Fixtures) insertProfile(ctx context.Context, id, fullName, email, role, departmentID string) models.Profile {
	f.t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := models.Profile{
		ID:           id,
		Email:        email,
		StudentID:    "S-" + id[:8],
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		DepartmentID: departmentID,
		Role:         role,
		IsVisible:    true,
		CreatedAt:    now,
		LastActive:   now,
	}
	if _, err := f.b.Insert(ctx, "profiles", p); err != nil {
		f.t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateAccount signs up an identity and inserts its profile. It returns the
// profile and a live session for it.
func (f *Fixtures) CreateAccount(ctx context.Context, fullName, email, role, departmentID string) (models.Profile, *backend.Session) {
	f.t.Helper()
	sess, err := f.b.Auth().SignUp(ctx, email, "password123")
	if err != nil {
		f.t.Fatalf("failed to sign up test account: %v", err)
	}
	p := f.insertProfile(ctx, sess.User.ID, fullName, email, role, departmentID)
	return p, sess
}

// Client returns a client acting for sess; a nil sess is signed out.
func (f *Fixtures) Client(sess *backend.Session) *backend.Client {
	return f.b.Client().WithSession(sess)
}

// CreatePost inserts a forum post.
func (f *Fixtures) CreatePost(ctx context.Context, authorID, title string, at time.Time) models.ForumPost {
	f.t.Helper()
	p := models.ForumPost{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Title:     title,
		Content:   "<p>" + title + "</p>",
		CreatedAt: at.UTC(),
		UpdatedAt: at.UTC(),
	}
	if _, err := f.b.Insert(ctx, "forum_posts", p); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// CreateComment inserts a forum comment.
func (f *Fixtures) CreateComment(ctx context.Context, postID, authorID, content string, at time.Time) models.ForumComment {
	f.t.Helper()
	c := models.ForumComment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: at.UTC(),
	}
	if _, err := f.b.Insert(ctx, "forum_comments", c); err != nil {
		f.t.Fatalf("failed to create test comment: %v", err)
	}
	return c
}

// CreateWarning inserts a warning.
func (f *Fixtures) CreateWarning(ctx context.Context, userID, reason string, at time.Time) models.Warning {
	f.t.Helper()
	w := models.Warning{ID: uuid.NewString(), UserID: userID, Reason: reason, CreatedAt: at.UTC()}
	if _, err := f.b.Insert(ctx, "warnings", w); err != nil {
		f.t.Fatalf("failed to create test warning: %v", err)
	}
	return w
}

// CreateResource inserts a resource in the given state.
func (f *Fixtures) CreateResource(ctx context.Context, departmentID, title, typ, flow, status string) models.Resource {
	f.t.Helper()
	r := models.Resource{
		ID:           uuid.NewString(),
		DepartmentID: departmentID,
		Title:        title,
		TitleCI:      text.Fold(title),
		ContentURL:   "https://example.com/" + title,
		Type:         typ,
		Flow:         flow,
		Status:       status,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := f.b.Insert(ctx, "resources", r); err != nil {
		f.t.Fatalf("failed to create test resource: %v", err)
	}
	return r
}

// CreateEvent inserts an event.
func (f *Fixtures) CreateEvent(ctx context.Context, title string, start time.Time, departments ...string) models.Event {
	f.t.Helper()
	e := models.Event{
		ID:          uuid.NewString(),
		Title:       title,
		StartTime:   start.UTC(),
		EndTime:     start.UTC().Add(time.Hour),
		Type:        models.EventOther,
		Departments: departments,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := f.b.Insert(ctx, "events", e); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

// CountRows counts rows in table matching field == value; an empty field
// counts every row.
func (f *Fixtures) CountRows(ctx context.Context, table, field string, value any) int64 {
	f.t.Helper()
	q := backend.From(table)
	if field != "" {
		q = q.Eq(field, value)
	}
	n, err := f.b.Count(ctx, q)
	if err != nil {
		f.t.Fatalf("count %s: %v", table, err)
	}
	return n
}
