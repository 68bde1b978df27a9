// internal/app/features/forum/handler.go
package forum

import (
	"context"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	forumstore "github.com/dalemusser/freshershub/internal/app/store/forum"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func init() {
	respond.Register(http.StatusForbidden, forumstore.ErrRestricted)
	respond.Register(http.StatusBadRequest, forumstore.ErrUnknownKind)
}

type Handler struct {
	Client   *backend.Client
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(client *backend.Client, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger, AuditLog: audit}
}

func (h *Handler) store(r *http.Request) *forumstore.Store {
	return forumstore.New(shared.Client(h.Client, r), h.Log)
}

// ServeList handles GET /forum. ?q= filters by title or body.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.FetchPosts(ctx); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	st := s.Snapshot()
	if q := r.URL.Query().Get("q"); q != "" {
		st.Posts = s.Search(q)
	}
	respond.OK(w, r, st)
}

// HandleCreatePost handles POST /forum.
func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in forumstore.PostInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	p, err := h.store(r).CreatePost(ctx, in)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, r, p)
}

// ServePost handles GET /forum/{postID}: the post and its comments.
func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := s.SelectPost(ctx, chi.URLParam(r, "postID")); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	st := s.Snapshot()
	respond.OK(w, r, map[string]any{"post": st.Selected, "comments": st.Comments})
}

type commentRequest struct {
	Content string `json:"content"`
}

// HandleCreateComment handles POST /forum/{postID}/comments.
func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	c, err := h.store(r).CreateComment(ctx, chi.URLParam(r, "postID"), req.Content)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, r, c)
}

// authorize loads the record's author and checks the request user may
// change it. Admin actions on other people's content are audited by the
// caller.
func (h *Handler) authorize(ctx context.Context, r *http.Request, s *forumstore.Store, kind, id string) (moderated bool, err error) {
	owner, err := s.Owner(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if !shared.CanModify(r, owner) {
		return false, shared.ErrForbidden
	}
	u, _ := auth.CurrentUser(r)
	return u.ID != owner, nil
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, kind, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	s := h.store(r)
	moderated, err := h.authorize(ctx, r, s, kind, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if kind == forumstore.KindPost {
		err = s.DeletePost(ctx, id)
	} else {
		err = s.DeleteComment(ctx, id)
	}
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if moderated {
		u, _ := auth.CurrentUser(r)
		h.AuditLog.PostModerated(ctx, u.ID, kind, id, "deleted")
	}
	respond.NoContent(w, r)
}

// HandleDeletePost handles DELETE /forum/{postID}.
func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, forumstore.KindPost, chi.URLParam(r, "postID"))
}

// HandleDeleteComment handles DELETE /forum/comments/{commentID}.
func (h *Handler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, forumstore.KindComment, chi.URLParam(r, "commentID"))
}

type flagRequest struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Flagged bool   `json:"flagged"`
}

// HandleFlag handles POST /forum/flag (admin).
func (h *Handler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).SetFlagged(ctx, req.Kind, req.ID, req.Flagged); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	action := "unflagged"
	if req.Flagged {
		action = "flagged"
	}
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.PostModerated(ctx, u.ID, req.Kind, req.ID, action)
	}
	respond.NoContent(w, r)
}

// ServeFlagged handles GET /forum/flagged (admin).
func (h *Handler) ServeFlagged(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	f, err := h.store(r).FetchFlagged(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, f)
}
