// internal/app/features/profile/handler.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	authstore "github.com/dalemusser/freshershub/internal/app/store/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

// ErrNotImage rejects avatar uploads that are not images.
var ErrNotImage = errors.New("avatar must be an image")

func init() {
	respond.Register(http.StatusUnsupportedMediaType, ErrNotImage)
}

type Handler struct {
	Client    *backend.Client
	Log       *zap.Logger
	MaxUpload int64
}

func NewHandler(client *backend.Client, maxUpload int64, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, MaxUpload: maxUpload}
}

// store returns an auth store hydrated with the request user's profile, or
// writes 401 and returns nil.
func (h *Handler) store(ctx context.Context, w http.ResponseWriter, r *http.Request) *authstore.Store {
	s := authstore.New(shared.Client(h.Client, r), h.Log)
	s.InitializeAuth(ctx)
	if s.User() == nil {
		respond.Error(w, r, h.Log, backend.ErrNoSession)
		return nil
	}
	return s
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(ctx, w, r)
	if s == nil {
		return
	}
	respond.OK(w, r, s.User())
}

// HandleUpdate handles PATCH /profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch authstore.ProfilePatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	s := h.store(ctx, w, r)
	if s == nil {
		return
	}
	if err := s.UpdateProfile(ctx, patch); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, s.User())
}

type avatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// HandleAvatar handles POST /profile/avatar with a multipart "avatar" file.
func (h *Handler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	if err := shared.ParseMultipart(w, r, h.MaxUpload); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	file, err := shared.FormFile(r, "avatar")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if file == nil {
		respond.Message(w, r, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()
	if !strings.HasPrefix(file.ContentType, "image/") {
		respond.Error(w, r, h.Log, ErrNotImage)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload())
	defer cancel()
	s := h.store(ctx, w, r)
	if s == nil {
		return
	}
	url, err := s.UploadAvatar(ctx, file.Name, file.ContentType, file.Body)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, avatarResponse{AvatarURL: url})
}
