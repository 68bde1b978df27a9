// Package userstore is the admin view of member profiles: role changes,
// warnings, forum restrictions, visibility, deletion and broadcasts. Each
// moderation action notifies the affected member once and is audit-logged.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/observability"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tables read or written here.
const (
	ProfilesTable = "profiles"
	WarningsTable = "warnings"
	PostsTable    = "forum_posts"
	CommentsTable = "forum_comments"
	PlansTable    = "plans"
)

var (
	ErrInvalidRole  = errors.New("role must be user or admin")
	ErrInvalidInput = errors.New("invalid input")
	ErrSelf         = errors.New("cannot apply this action to your own account")
	ErrNoSelection  = errors.New("no users selected")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

type warningInput struct {
	Reason string `json:"reason" validate:"required,max=500" label:"Reason"`
}

type broadcastInput struct {
	Message string `json:"message" validate:"required,max=1000" label:"Message"`
}

// State is a point-in-time copy of the store.
type State struct {
	Users     []models.Profile `json:"users"`
	Selected  []string         `json:"selected"`
	Analytics *Analytics       `json:"analytics,omitempty"`
	Loading   bool             `json:"loading"`
	Error     string           `json:"error,omitempty"`
}

// Store holds the member list and the admin's current selection.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	audit  *auditlog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	users     []models.Profile
	selected  map[string]struct{}
	analytics *Analytics
	loading   bool
	err       string
}

// New builds a store acting through client. audit may be nil.
func New(client *backend.Client, logger *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		client:   client,
		log:      logger,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
		selected: make(map[string]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Users:    append([]models.Profile{}, s.users...),
		Selected: s.selectedLocked(),
		Loading:  s.loading,
		Error:    s.err,
	}
	if s.analytics != nil {
		a := *s.analytics
		st.Analytics = &a
	}
	return st
}

// Users returns the last fetched member list.
func (s *Store) Users() []models.Profile { return s.Snapshot().Users }

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("users", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

func (s *Store) actorID() (string, error) {
	sess := s.client.Session()
	if sess == nil || sess.User.ID == "" {
		return "", backend.ErrNoSession
	}
	return sess.User.ID, nil
}

// patch applies fn to the cached profile with id, if loaded.
func (s *Store) patch(id string, fn func(p *models.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			fn(&s.users[i])
			return
		}
	}
}

func (s *Store) cached(id string) (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.users {
		if p.ID == id {
			return p, true
		}
	}
	return models.Profile{}, false
}

// notifyUser makes one notification attempt for userID. Failures are
// logged and never returned.
func (s *Store) notifyUser(ctx context.Context, op, userID, message, typ string) {
	res := notify.CreateNotification(ctx, s.client.DB, userID, message, typ)
	if res.Success {
		return
	}
	s.log.Warn("user notification failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(res.Err))
	observability.CaptureWithTags(res.Err, map[string]string{"store": "users", "op": op})
}

// FetchUsers replaces the list with every profile, ordered by name.
// Selected ids that no longer exist are dropped.
func (s *Store) FetchUsers(ctx context.Context) error {
	s.begin()
	list, err := backend.FindAll[models.Profile](ctx, s.client.DB,
		backend.From(ProfilesTable).OrderBy("full_name_ci", false))
	if err != nil {
		return s.end("fetch", fmt.Errorf("fetch users: %w", err))
	}
	s.mu.Lock()
	s.users = list
	keep := make(map[string]struct{}, len(s.selected))
	for _, p := range list {
		if _, ok := s.selected[p.ID]; ok {
			keep[p.ID] = struct{}{}
		}
	}
	s.selected = keep
	s.mu.Unlock()
	return s.end("fetch", nil)
}

// Search filters the loaded list by name, email or student id, ignoring
// case and diacritics. An empty query returns every loaded user.
func (s *Store) Search(query string) []models.Profile {
	users := s.Users()
	raw := strings.ToLower(strings.TrimSpace(query))
	if raw == "" {
		return users
	}
	q := text.Fold(raw)
	out := []models.Profile{}
	for _, p := range users {
		if strings.Contains(text.Fold(p.FullName), q) ||
			strings.Contains(strings.ToLower(p.Email), raw) ||
			strings.Contains(strings.ToLower(p.StudentID), raw) {
			out = append(out, p)
		}
	}
	return out
}

// UpdateUserRole sets a member's role and tells them. Concurrent calls are
// not serialized; the last write to commit wins and every call notifies.
func (s *Store) UpdateUserRole(ctx context.Context, userID, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return ErrInvalidRole
	}
	actor, err := s.actorID()
	if err != nil {
		return err
	}
	prev, _ := s.cached(userID)

	s.begin()
	n, err := s.client.DB.Update(ctx, backend.From(ProfilesTable).Eq("_id", userID), backend.Set{"role": role})
	if err == nil && n == 0 {
		err = backend.ErrNotFound
	}
	if err != nil {
		return s.end("role", fmt.Errorf("update role: %w", err))
	}
	s.patch(userID, func(p *models.Profile) { p.Role = role })

	s.notifyUser(ctx, "role", userID, fmt.Sprintf("Your role has been changed to %s.", role), models.NotifyRole)
	s.audit.RoleChanged(ctx, actor, userID, prev.Role, role)
	return s.end("role", nil)
}

// IssueWarning records a warning against a member and tells them.
func (s *Store) IssueWarning(ctx context.Context, userID, reason string) (models.Warning, error) {
	in := warningInput{Reason: strings.TrimSpace(reason)}
	if res := inputval.Validate(in); res.HasErrors() {
		return models.Warning{}, &ValidationError{Result: res}
	}
	actor, err := s.actorID()
	if err != nil {
		return models.Warning{}, err
	}

	s.begin()
	w := models.Warning{
		ID:        uuid.NewString(),
		UserID:    userID,
		Reason:    in.Reason,
		IssuedBy:  actor,
		CreatedAt: s.now(),
	}
	if _, err := s.client.DB.Insert(ctx, WarningsTable, w); err != nil {
		return models.Warning{}, s.end("warn", fmt.Errorf("issue warning: %w", err))
	}

	s.notifyUser(ctx, "warn", userID, "You have received a warning: "+in.Reason, models.NotifyWarning)
	s.audit.WarningIssued(ctx, actor, userID, in.Reason)
	return w, s.end("warn", nil)
}

func restrictionMessage(restricted bool) string {
	if restricted {
		return "Your forum access has been restricted."
	}
	return "Your forum access has been restored."
}

// SetRestricted sets whether a member may post in the forum and tells them.
func (s *Store) SetRestricted(ctx context.Context, userID string, restricted bool) error {
	actor, err := s.actorID()
	if err != nil {
		return err
	}
	if userID == actor && restricted {
		return ErrSelf
	}

	s.begin()
	n, err := s.client.DB.Update(ctx, backend.From(ProfilesTable).Eq("_id", userID), backend.Set{"is_restricted": restricted})
	if err == nil && n == 0 {
		err = backend.ErrNotFound
	}
	if err != nil {
		return s.end("restrict", fmt.Errorf("set restriction: %w", err))
	}
	s.patch(userID, func(p *models.Profile) { p.IsRestricted = restricted })

	s.notifyUser(ctx, "restrict", userID, restrictionMessage(restricted), models.NotifyRestriction)
	s.audit.RestrictionChanged(ctx, actor, userID, restricted)
	return s.end("restrict", nil)
}

// ToggleRestriction flips the member's restriction and returns the new value.
func (s *Store) ToggleRestriction(ctx context.Context, userID string) (bool, error) {
	p, ok := s.cached(userID)
	if !ok {
		var err error
		p, err = backend.FindOne[models.Profile](ctx, s.client.DB,
			backend.From(ProfilesTable).Eq("_id", userID).Select("is_restricted"))
		if err != nil {
			return false, s.end("restrict", fmt.Errorf("load profile: %w", err))
		}
	}
	next := !p.IsRestricted
	return next, s.SetRestricted(ctx, userID, next)
}

// SetVisible shows or hides a member in the directory.
func (s *Store) SetVisible(ctx context.Context, userID string, visible bool) error {
	actor, err := s.actorID()
	if err != nil {
		return err
	}

	s.begin()
	n, err := s.client.DB.Update(ctx, backend.From(ProfilesTable).Eq("_id", userID), backend.Set{"is_visible": visible})
	if err == nil && n == 0 {
		err = backend.ErrNotFound
	}
	if err != nil {
		return s.end("visible", fmt.Errorf("set visibility: %w", err))
	}
	s.patch(userID, func(p *models.Profile) { p.IsVisible = visible })
	s.audit.VisibilityChanged(ctx, actor, userID, visible)
	return s.end("visible", nil)
}

// DeleteUser removes a member's profile and everything they own: forum
// posts with their comments, comments elsewhere, warnings, plans and
// notifications. The auth identity is left for the auth service to expire.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	actor, err := s.actorID()
	if err != nil {
		return err
	}
	if userID == actor {
		return ErrSelf
	}

	s.begin()
	if err := s.deleteUser(ctx, userID); err != nil {
		return s.end("delete", err)
	}

	s.mu.Lock()
	var email string
	kept := s.users[:0:0]
	for _, p := range s.users {
		if p.ID == userID {
			email = p.Email
			continue
		}
		kept = append(kept, p)
	}
	s.users = kept
	delete(s.selected, userID)
	s.mu.Unlock()

	s.audit.UserDeleted(ctx, actor, userID, email)
	return s.end("delete", nil)
}

func (s *Store) deleteUser(ctx context.Context, userID string) error {
	db := s.client.DB
	if _, err := backend.FindOne[models.Profile](ctx, db, backend.From(ProfilesTable).Eq("_id", userID).Select("_id")); err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	type idRow struct {
		ID string `bson:"_id"`
	}
	posts, err := backend.FindAll[idRow](ctx, db, backend.From(PostsTable).Eq("author_id", userID).Select("_id"))
	if err != nil {
		return fmt.Errorf("load posts: %w", err)
	}
	if len(posts) > 0 {
		ids := make([]string, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		if _, err := db.Delete(ctx, backend.In(backend.From(CommentsTable), "post_id", ids)); err != nil {
			return fmt.Errorf("delete comments on posts: %w", err)
		}
	}

	for _, q := range []*backend.Query{
		backend.From(CommentsTable).Eq("author_id", userID),
		backend.From(PostsTable).Eq("author_id", userID),
		backend.From(WarningsTable).Eq("user_id", userID),
		backend.From(PlansTable).Eq("user_id", userID),
		backend.From(notify.NotificationsTable).Eq("user_id", userID),
		backend.From(ProfilesTable).Eq("_id", userID),
	} {
		if _, err := db.Delete(ctx, q); err != nil {
			return fmt.Errorf("delete %s: %w", q.Table, err)
		}
	}
	return nil
}

// Broadcast sends message to every member and returns how many rows were
// written.
func (s *Store) Broadcast(ctx context.Context, message string) (int, error) {
	in := broadcastInput{Message: strings.TrimSpace(message)}
	if res := inputval.Validate(in); res.HasErrors() {
		return 0, &ValidationError{Result: res}
	}
	actor, err := s.actorID()
	if err != nil {
		return 0, err
	}

	s.begin()
	users := notify.GetAllUsers(ctx, s.client.DB)
	if !users.Success {
		return 0, s.end("broadcast", users.Err)
	}
	res := notify.CreateNotificationsForUsers(ctx, s.client.DB, users.Users, in.Message, models.NotifyBroadcast)
	if !res.Success {
		s.audit.BroadcastSent(ctx, actor, 0, len(users.Users))
		return 0, s.end("broadcast", res.Err)
	}
	s.audit.BroadcastSent(ctx, actor, res.Inserted, 0)
	return res.Inserted, s.end("broadcast", nil)
}

// WarningCount returns how many warnings a member has received.
func (s *Store) WarningCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.client.DB.Count(ctx, backend.From(WarningsTable).Eq("user_id", userID))
	if err != nil {
		return 0, fmt.Errorf("count warnings: %w", err)
	}
	return n, nil
}

// Warnings returns a member's warnings, newest first.
func (s *Store) Warnings(ctx context.Context, userID string) ([]models.Warning, error) {
	list, err := backend.FindAll[models.Warning](ctx, s.client.DB,
		backend.From(WarningsTable).Eq("user_id", userID).OrderBy("created_at", true))
	if err != nil {
		return nil, fmt.Errorf("fetch warnings: %w", err)
	}
	return list, nil
}

// --- selection ---

func (s *Store) selectedLocked() []string {
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Toggle adds or removes id from the selection and reports whether it is
// now selected.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll selects every loaded user.
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.users {
		s.selected[p.ID] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.mu.Unlock()
}

// Selected returns the selected ids in sorted order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

// BulkResult lists per-user outcomes of a bulk action.
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func (s *Store) bulk(ctx context.Context, fn func(ctx context.Context, id string) error) (*BulkResult, error) {
	ids := s.Selected()
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	res := &BulkResult{Succeeded: []string{}, Failed: map[string]string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := fn(ctx, id); err != nil {
			res.Failed[id] = err.Error()
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		s.mu.Lock()
		delete(s.selected, id)
		s.mu.Unlock()
	}
	return res, nil
}

// BulkSetRestricted applies SetRestricted to every selected user. Users
// that succeed leave the selection.
func (s *Store) BulkSetRestricted(ctx context.Context, restricted bool) (*BulkResult, error) {
	return s.bulk(ctx, func(ctx context.Context, id string) error {
		return s.SetRestricted(ctx, id, restricted)
	})
}

// BulkDelete applies DeleteUser to every selected user.
func (s *Store) BulkDelete(ctx context.Context) (*BulkResult, error) {
	return s.bulk(ctx, s.DeleteUser)
}
