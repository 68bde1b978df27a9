package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey      = "is_authenticated"
	userIDKey      = "user_id"
	accessTokenKey = "access_token"
)

// SessionUser is the signed-in user injected into the request context.
type SessionUser struct {
	ID           string
	Name         string
	Email        string
	Role         string
	DepartmentID string
	IsRestricted bool
	// AccessToken is the backend token the request acts with.
	AccessToken string
}

// IsAdmin reports whether the user holds the admin role.
func (u *SessionUser) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, "admin")
}

// UserFetcher resolves a session's token into a fresh user on every request,
// so role changes and restrictions take effect immediately. A nil user with
// a nil error means the session is no longer valid.
type UserFetcher interface {
	FetchUser(ctx context.Context, accessToken, userID string) (*SessionUser, error)
}

// SessionManager owns the session cookie store.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	logger  *zap.Logger
	fetcher UserFetcher
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// NewSessionManager builds a cookie store keyed by sessionKey. secure marks
// cookies Secure with SameSite=None; otherwise SameSite=Lax for local dev.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "freshershub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetUserFetcher installs the per-request user refresher.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// Store exposes the cookie store.
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// GetSession returns the named session. On a decode error it still returns
// a usable fresh session along with the error.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// logSessionErr separates stale or tampered cookies from store failures.
func (sm *SessionManager) logSessionErr(during string, err error) {
	if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
		sm.logger.Warn("session cookie invalid, using fresh session",
			zap.String("during", during), zap.Error(err))
		return
	}
	sm.logger.Error("session store error, using fresh session",
		zap.String("during", during), zap.Error(err))
}

// Login records the signed-in user's id and access token in the cookie.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, userID, accessToken string) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.logSessionErr("login", err)
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
	sess.Values[accessTokenKey] = accessToken
	return sess.Save(r, w)
}

// Logout expires the session cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.logSessionErr("logout", err)
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into the context when the cookie holds
// a token the fetcher still accepts.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil || sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		isAuth, _ := sess.Values[isAuthKey].(bool)
		token, _ := sess.Values[accessTokenKey].(string)
		userID, _ := sess.Values[userIDKey].(string)
		if !isAuth || token == "" {
			next.ServeHTTP(w, r)
			return
		}

		u := &SessionUser{ID: userID, AccessToken: token}
		if sm.fetcher != nil {
			fresh, err := sm.fetcher.FetchUser(r.Context(), token, userID)
			if err != nil {
				sm.logger.Warn("session user refresh failed", zap.String("user_id", userID), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if fresh == nil {
				next.ServeHTTP(w, r)
				return
			}
			u = fresh
			u.AccessToken = token
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn answers 401 when no user is in context.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 when signed out and 403 when the user's role is
// not in allowed.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u directly, bypassing the cookie. Tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
