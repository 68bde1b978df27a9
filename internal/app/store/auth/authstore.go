// Package authstore holds the signed-in user's session and profile.
package authstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/normalize"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Table and bucket names.
const (
	ProfilesTable = "profiles"
	AvatarsBucket = "avatars"
)

var (
	// ErrStudentIDTaken is returned by SignUp before any identity is created.
	ErrStudentIDTaken = errors.New("student id is already registered")
	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError carries per-field messages from SignUp validation.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

// SignUpInput is everything needed to register a student.
type SignUpInput struct {
	Email        string `json:"email" validate:"required,email" label:"Email"`
	Password     string `json:"password" validate:"required,password" label:"Password"`
	StudentID    string `json:"student_id" validate:"required,max=32" label:"Student ID"`
	FullName     string `json:"full_name" validate:"required,max=120" label:"Full name"`
	DepartmentID string `json:"department_id" validate:"omitempty,max=64" label:"Department"`
}

// ProfilePatch lists the fields a user may change on their own profile.
// Nil fields are left alone.
type ProfilePatch struct {
	FullName     *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120" label:"Full name"`
	AvatarURL    *string `json:"avatar_url,omitempty" validate:"omitempty,httpurl" label:"Avatar"`
	DepartmentID *string `json:"department_id,omitempty" validate:"omitempty,max=64" label:"Department"`
}

// State is a point-in-time copy of the store.
type State struct {
	User    *models.Profile `json:"user"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

// Store owns the current session user. It starts in the loading state until
// InitializeAuth, SignIn or SignUp settles it.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	user    *models.Profile
	loading bool
	err     string
}

// New builds a store acting through client.
func New(client *backend.Client, logger *zap.Logger) *Store {
	return &Store{client: client, log: logger, now: func() time.Time { return time.Now().UTC() }, loading: true}
}

// Client returns the backend client, carrying the current session.
func (s *Store) Client() *backend.Client { return s.client }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Loading: s.loading, Error: s.err}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// User returns a copy of the current profile, or nil when signed out.
func (s *Store) User() *models.Profile { return s.Snapshot().User }

// Loading reports whether a session check is in flight.
func (s *Store) Loading() bool { return s.Snapshot().Loading }

// IsAdmin reports whether the current user holds the admin role.
func (s *Store) IsAdmin() bool {
	u := s.User()
	return u != nil && u.IsAdmin()
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) finish(user *models.Profile, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
		return
	}
	s.user = user
}

// SignIn authenticates, loads or lazily creates the profile, stamps
// last_active and publishes the profile as the current user.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Profile, error) {
	s.begin()
	p, err := s.signIn(ctx, normalize.Email(email), password)
	metrics.Op("auth", "sign_in", err)
	s.finish(p, err)
	if err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (s *Store) signIn(ctx context.Context, email, password string) (*models.Profile, error) {
	sess, err := s.client.Auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.client.SetSession(sess)

	p, err := s.loadOrCreateProfile(ctx, sess.User)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := s.client.DB.Update(ctx, backend.From(ProfilesTable).Eq("_id", p.ID), backend.Set{"last_active": now}); err != nil {
		s.log.Warn("stamp last_active failed", zap.String("user_id", p.ID), zap.Error(err))
	} else {
		p.LastActive = now
	}
	return p, nil
}

// loadOrCreateProfile returns the profile for an identity, creating a
// minimal one when the identity has none yet.
func (s *Store) loadOrCreateProfile(ctx context.Context, u backend.AuthUser) (*models.Profile, error) {
	p, err := backend.FindOne[models.Profile](ctx, s.client.DB, backend.From(ProfilesTable).Eq("_id", u.ID))
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	name := u.Email
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	now := s.now()
	p = models.Profile{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   name,
		FullNameCI: text.Fold(name),
		Role:       models.RoleUser,
		IsVisible:  true,
		CreatedAt:  now,
		LastActive: now,
	}
	if _, err := s.client.DB.Insert(ctx, ProfilesTable, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.Info("created missing profile", zap.String("user_id", u.ID))
	return &p, nil
}

// SignUp validates input, rejects a registered student id before touching
// the auth service, then creates the identity and its profile.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*models.Profile, error) {
	in.Email = normalize.Email(in.Email)
	in.StudentID = normalize.StudentID(in.StudentID)
	in.FullName = normalize.Name(in.FullName)
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}

	s.begin()
	p, err := s.signUp(ctx, in)
	metrics.Op("auth", "sign_up", err)
	s.finish(p, err)
	if err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (s *Store) signUp(ctx context.Context, in SignUpInput) (*models.Profile, error) {
	n, err := s.client.DB.Count(ctx, backend.From(ProfilesTable).Eq("student_id", in.StudentID))
	if err != nil {
		return nil, fmt.Errorf("check student id: %w", err)
	}
	if n > 0 {
		return nil, ErrStudentIDTaken
	}

	sess, err := s.client.Auth.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	s.client.SetSession(sess)

	now := s.now()
	p := models.Profile{
		ID:           sess.User.ID,
		Email:        in.Email,
		StudentID:    in.StudentID,
		FullName:     in.FullName,
		FullNameCI:   text.Fold(in.FullName),
		DepartmentID: in.DepartmentID,
		Role:         models.RoleUser,
		IsVisible:    true,
		CreatedAt:    now,
		LastActive:   now,
	}
	if _, err := s.client.DB.Insert(ctx, ProfilesTable, p); err != nil {
		// The identity exists without a profile; the next sign-in creates one.
		s.log.Error("profile insert failed after sign-up",
			zap.String("user_id", sess.User.ID), zap.Error(err))
		if errors.Is(err, backend.ErrConflict) {
			return nil, ErrStudentIDTaken
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

// SignOut revokes the session token and clears the session and user. Both
// are cleared even when revocation fails.
func (s *Store) SignOut(ctx context.Context) error {
	var err error
	if sess := s.client.Session(); sess != nil {
		err = s.client.Auth.SignOut(ctx, sess.AccessToken)
	}
	metrics.Op("auth", "sign_out", err)
	s.client.SetSession(nil)
	s.mu.Lock()
	s.user = nil
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// UpdateProfile merges patch into the snapshot first, then writes it. A
// failed write leaves the merged snapshot in place.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	if res := inputval.Validate(patch); res.HasErrors() {
		return &ValidationError{Result: res}
	}
	set := backend.Set{}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return backend.ErrNoSession
	}
	id := s.user.ID
	if patch.FullName != nil {
		name := normalize.Name(*patch.FullName)
		s.user.FullName = name
		s.user.FullNameCI = text.Fold(name)
		set["full_name"] = name
		set["full_name_ci"] = s.user.FullNameCI
	}
	if patch.AvatarURL != nil {
		s.user.AvatarURL = *patch.AvatarURL
		set["avatar_url"] = *patch.AvatarURL
	}
	if patch.DepartmentID != nil {
		s.user.DepartmentID = *patch.DepartmentID
		set["department_id"] = *patch.DepartmentID
	}
	s.err = ""
	s.mu.Unlock()

	if len(set) == 0 {
		return nil
	}
	_, err := s.client.DB.Update(ctx, backend.From(ProfilesTable).Eq("_id", id), set)
	metrics.Op("auth", "update_profile", err)
	if err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UploadAvatar stores an image in the avatars bucket and points the
// profile at it.
func (s *Store) UploadAvatar(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	u := s.User()
	if u == nil {
		return "", backend.ErrNoSession
	}
	objPath := u.ID + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	stored, err := s.client.Storage.Upload(ctx, AvatarsBucket, objPath, r, contentType)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	url := s.client.Storage.PublicURL(AvatarsBucket, stored)
	if err := s.UpdateProfile(ctx, ProfilePatch{AvatarURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}

// InitializeAuth hydrates the user from the client's existing session.
// Failures are logged and leave the store signed out; Loading is false on
// every return.
func (s *Store) InitializeAuth(ctx context.Context) {
	s.begin()
	var user *models.Profile
	defer func() {
		s.mu.Lock()
		s.user = user
		s.loading = false
		s.mu.Unlock()
	}()

	if s.client.Session() == nil {
		return
	}
	au, err := s.client.CurrentUser(ctx)
	if err != nil {
		s.log.Info("session not restored", zap.Error(err))
		return
	}
	p, err := s.loadOrCreateProfile(ctx, au)
	if err != nil {
		s.log.Warn("profile not restored", zap.String("user_id", au.ID), zap.Error(err))
		return
	}
	user = p
}
