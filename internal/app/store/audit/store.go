// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
)

// Table holds one row per audit event.
const Table = "audit_events"

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventSignInSuccess = "sign_in_success"
	EventSignInFailed  = "sign_in_failed"
	EventSignUp        = "sign_up"
	EventSignOut       = "sign_out"
)

// Admin event types
const (
	EventRoleChanged           = "role_changed"
	EventWarningIssued         = "warning_issued"
	EventUserRestricted        = "user_restricted"
	EventUserUnrestricted      = "user_unrestricted"
	EventVisibilityChanged     = "visibility_changed"
	EventUserDeleted           = "user_deleted"
	EventBroadcastSent         = "broadcast_sent"
	EventEventCreated          = "event_created"
	EventEventUpdated          = "event_updated"
	EventEventDeleted          = "event_deleted"
	EventResourceStatusChanged = "resource_status_changed"
	EventResourceDeleted       = "resource_deleted"
	EventDepartmentCreated     = "department_created"
	EventDepartmentDeleted     = "department_deleted"
	EventPostModerated         = "post_moderated"
)

// DefaultLimit caps Query when the filter sets no limit.
const DefaultLimit = 100

// QueryFilter narrows Query and Count. Zero fields are ignored.
type QueryFilter struct {
	UserID    string
	ActorID   string
	Category  string
	EventType string
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// Store reads and writes audit rows.
type Store struct {
	db backend.Database
}

func New(db backend.Database) *Store {
	return &Store{db: db}
}

// Log stores one event, stamping CreatedAt when unset.
func (s *Store) Log(ctx context.Context, event models.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Insert(ctx, Table, event)
	return err
}

func (f QueryFilter) apply(q *backend.Query) *backend.Query {
	if f.UserID != "" {
		q.Eq("user_id", f.UserID)
	}
	if f.ActorID != "" {
		q.Eq("actor_id", f.ActorID)
	}
	if f.Category != "" {
		q.Eq("category", f.Category)
	}
	if f.EventType != "" {
		q.Eq("event_type", f.EventType)
	}
	if f.Since != nil {
		q.Gte("created_at", *f.Since)
	}
	if f.Until != nil {
		q.Lt("created_at", *f.Until)
	}
	return q
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]models.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := filter.apply(backend.From(Table)).OrderBy("created_at", true).Limit(limit)
	return backend.FindAll[models.AuditEvent](ctx, s.db, q)
}

// Count returns the number of events matching filter. Limit is ignored.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.db.Count(ctx, filter.apply(backend.From(Table)))
}

// GetByUser returns events affecting userID.
func (s *Store) GetByUser(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	return s.Query(ctx, QueryFilter{UserID: userID, Limit: limit})
}

// GetByActor returns events performed by actorID.
func (s *Store) GetByActor(ctx context.Context, actorID string, limit int) ([]models.AuditEvent, error) {
	return s.Query(ctx, QueryFilter{ActorID: actorID, Limit: limit})
}

func (s *Store) GetRecent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// GetFailedSignIns returns failed sign-in attempts since the given time.
func (s *Store) GetFailedSignIns(ctx context.Context, since time.Time, limit int) ([]models.AuditEvent, error) {
	return s.Query(ctx, QueryFilter{
		Category:  CategoryAuth,
		EventType: EventSignInFailed,
		Since:     &since,
		Limit:     limit,
	})
}
