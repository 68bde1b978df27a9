// Package notify writes Notification rows. Every function reports its
// outcome in a Result instead of an error so fan-out call sites can log and
// carry on; callers must check Success.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/cache"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
)

// Tables written and read here.
const (
	NotificationsTable = "notifications"
	ProfilesTable      = "profiles"
)

// Result is the outcome of a write.
type Result struct {
	Success  bool
	Inserted int
	Err      error
}

// UsersResult is the outcome of a recipient lookup.
type UsersResult struct {
	Success bool
	Users   []string
	Err     error
}

// Policy selects fan-out recipients for an event change.
type Policy string

const (
	// PolicyAll notifies every profile.
	PolicyAll Policy = "all"
	// PolicyDepartment notifies profiles whose department is listed on the
	// event; an event without departments notifies everyone.
	PolicyDepartment Policy = "department"
)

// ParsePolicy accepts "all" or "department". Empty means all.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAll:
		return PolicyAll, nil
	case PolicyDepartment:
		return PolicyDepartment, nil
	}
	return "", fmt.Errorf("notify: unknown fan-out policy %q", s)
}

var (
	unreadMu    sync.RWMutex
	unreadCache *cache.Client
)

// UseCache sets the unread-count cache that writes here invalidate. A nil
// client turns invalidation off.
func UseCache(c *cache.Client) {
	unreadMu.Lock()
	unreadCache = c
	unreadMu.Unlock()
}

// UnreadKey is the cache key of a member's unread count.
func UnreadKey(userID string) string { return "unread:" + userID }

func dropUnread(ctx context.Context, userIDs []string) {
	unreadMu.RLock()
	c := unreadCache
	unreadMu.RUnlock()
	if c == nil {
		return
	}
	seen := make(map[string]struct{}, len(userIDs))
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, UnreadKey(id))
	}
	c.Delete(ctx, keys...)
}

func newRow(userID, message, typ string, now time.Time) models.Notification {
	return models.Notification{
		UserID:    userID,
		Message:   message,
		Type:      typ,
		CreatedAt: now,
	}
}

// CreateNotification writes one unread notification for userID.
func CreateNotification(ctx context.Context, db backend.Database, userID, message, typ string) Result {
	return CreateNotificationsForUsers(ctx, db, []string{userID}, message, typ)
}

// CreateNotificationsForUsers writes one row per id, in one batch, then
// drops the recipients' cached unread counts. Ids are not deduplicated.
func CreateNotificationsForUsers(ctx context.Context, db backend.Database, userIDs []string, message, typ string) Result {
	if len(userIDs) == 0 {
		return Result{Success: true}
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		docs = append(docs, newRow(id, message, typ, now))
	}
	ids, err := db.Insert(ctx, NotificationsTable, docs...)
	if err != nil {
		metrics.FanoutRows.WithLabelValues("error").Add(float64(len(docs)))
		return Result{Err: fmt.Errorf("insert notifications: %w", err)}
	}
	metrics.FanoutRows.WithLabelValues("ok").Add(float64(len(ids)))
	dropUnread(ctx, userIDs)
	return Result{Success: true, Inserted: len(ids)}
}

type idRow struct {
	ID string `bson:"_id"`
}

func userIDs(ctx context.Context, db backend.Database, q *backend.Query) UsersResult {
	rows, err := backend.FindAll[idRow](ctx, db, q.Select("_id"))
	if err != nil {
		return UsersResult{Err: fmt.Errorf("load users: %w", err)}
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return UsersResult{Success: true, Users: ids}
}

// GetAllUsers returns every profile id.
func GetAllUsers(ctx context.Context, db backend.Database) UsersResult {
	return userIDs(ctx, db, backend.From(ProfilesTable))
}

// Recipients returns the profile ids an event change should reach under p.
func Recipients(ctx context.Context, db backend.Database, p Policy, departments []string) UsersResult {
	if p != PolicyDepartment || len(departments) == 0 {
		return GetAllUsers(ctx, db)
	}
	return userIDs(ctx, db, backend.In(backend.From(ProfilesTable), "department_id", departments))
}
