// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	authstore "github.com/dalemusser/freshershub/internal/app/store/auth"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/normalize"
	"github.com/dalemusser/freshershub/internal/app/system/ratelimit"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.uber.org/zap"
)

func init() {
	respond.Register(http.StatusConflict, authstore.ErrStudentIDTaken)
	respond.Register(http.StatusTooManyRequests, ratelimit.ErrTooManyAttempts)
}

// Handler signs users in and up. Both flows finish by writing the access
// token into the session cookie.
type Handler struct {
	Client     *backend.Client
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.Guard
}

func NewHandler(client *backend.Client, sessionMgr *auth.SessionManager, audit *auditlog.Logger, limiter *ratelimit.Guard, logger *zap.Logger) *Handler {
	return &Handler{
		Client:     client,
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// failureReason is the audit detail for a failed sign-in.
func failureReason(err error) string {
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ratelimit.ErrTooManyAttempts):
		return "rate limited"
	default:
		return "error"
	}
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	email := normalize.Email(req.Email)

	if err := h.Limiter.Check(r, email); err != nil {
		h.AuditLog.SignInFailed(r.Context(), email, failureReason(err))
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := authstore.New(h.Client.WithSession(nil), h.Log)
	p, err := store.SignIn(ctx, email, req.Password)
	if err != nil {
		h.AuditLog.SignInFailed(ctx, email, failureReason(err))
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Limiter.Succeeded(email)

	if !h.startSession(w, r, p, store) {
		return
	}
	h.AuditLog.SignInSuccess(ctx, p.ID, p.Email)
	respond.OK(w, r, p)
}

// HandleSignup handles POST /auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in authstore.SignUpInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := h.Limiter.Check(r, ""); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := authstore.New(h.Client.WithSession(nil), h.Log)
	p, err := store.SignUp(ctx, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if !h.startSession(w, r, p, store) {
		return
	}
	h.AuditLog.SignedUp(ctx, p.ID, p.Email)
	respond.Created(w, r, p)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, p *models.Profile, store *authstore.Store) bool {
	sess := store.Client().Session()
	if sess == nil {
		respond.Error(w, r, h.Log, backend.ErrNoSession)
		return false
	}
	if err := h.SessionMgr.Login(w, r, p.ID, sess.AccessToken); err != nil {
		respond.Error(w, r, h.Log, err)
		return false
	}
	return true
}
