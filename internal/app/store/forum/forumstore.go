// Package forumstore holds the discussion board: posts, the open post and
// its comments.
package forumstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PostsTable    = "forum_posts"
	CommentsTable = "forum_comments"
	profilesTable = "profiles"
)

// Moderation targets for SetFlagged.
const (
	KindPost    = "post"
	KindComment = "comment"
)

var (
	// ErrRestricted is returned when a restricted user tries to post or comment.
	ErrRestricted = errors.New("account is restricted from posting")
	// ErrUnknownKind is returned by SetFlagged for anything but KindPost or KindComment.
	ErrUnknownKind = errors.New("unknown moderation target")
	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError carries per-field messages for a rejected post or comment.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

// PostInput is a new post as submitted.
type PostInput struct {
	Title     string              `json:"title" validate:"required,max=200" label:"Title"`
	Content   string              `json:"content" validate:"required,max=20000" label:"Content"`
	Resources []models.Attachment `json:"resources,omitempty" validate:"omitempty,max=10" label:"Attachments"`
}

type commentInput struct {
	Content string `json:"content" validate:"required,max=5000" label:"Comment"`
}

// Flagged lists moderated content awaiting review.
type Flagged struct {
	Posts    []models.ForumPost    `json:"posts"`
	Comments []models.ForumComment `json:"comments"`
}

// State is a point-in-time copy of the store.
type State struct {
	Posts    []models.ForumPost    `json:"posts"`
	Selected *models.ForumPost     `json:"selected,omitempty"`
	Comments []models.ForumComment `json:"comments"`
	Loading  bool                  `json:"loading"`
	Error    string                `json:"error,omitempty"`
}

// Store holds one user's view of the forum. Loading and Error are shared by
// every operation on the store.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	now    func() time.Time

	mu           sync.RWMutex
	posts        []models.ForumPost
	selected     *models.ForumPost
	comments     []models.ForumComment
	commentsPost string
	loading      bool
	err          string
}

// New builds a store acting through client.
func New(client *backend.Client, logger *zap.Logger) *Store {
	return &Store{client: client, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot returns a copy of the current state. Comments are only listed
// while a post is selected. Lists are never nil.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Posts:    append([]models.ForumPost{}, s.posts...),
		Comments: []models.ForumComment{},
		Loading:  s.loading,
		Error:    s.err,
	}
	if s.selected != nil {
		p := *s.selected
		st.Selected = &p
		if s.commentsPost == p.ID {
			st.Comments = append(st.Comments, s.comments...)
		}
	}
	return st
}

// Posts returns the last fetched post list.
func (s *Store) Posts() []models.ForumPost { return s.Snapshot().Posts }

// Comments returns the comments of the selected post. It is empty when no
// post is selected.
func (s *Store) Comments() []models.ForumComment { return s.Snapshot().Comments }

// Selected returns the open post, or nil.
func (s *Store) Selected() *models.ForumPost { return s.Snapshot().Selected }

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("forum", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// settle ends op after its write committed. A failed re-fetch is logged and
// kept on Error, but the op still succeeds.
func (s *Store) settle(op string, refetchErr error) {
	metrics.Op("forum", op, nil)
	if refetchErr != nil {
		s.log.Warn("forum re-fetch failed after write",
			zap.String("op", op), zap.Error(refetchErr))
	}
	s.mu.Lock()
	s.loading = false
	if refetchErr != nil {
		s.err = refetchErr.Error()
	}
	s.mu.Unlock()
}

func postsQuery() *backend.Query {
	return backend.From(PostsTable).
		Embed("author", profilesTable, "author_id", "_id").
		OrderBy("created_at", true)
}

func commentsQuery(postID string) *backend.Query {
	return backend.From(CommentsTable).Eq("post_id", postID).
		Embed("author", profilesTable, "author_id", "_id").
		OrderBy("created_at", false)
}

func (s *Store) loadPosts(ctx context.Context, q *backend.Query) ([]models.ForumPost, error) {
	rows, err := backend.FindAll[postRow](ctx, s.client.DB, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.ForumPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.post())
	}
	return out, nil
}

func (s *Store) loadComments(ctx context.Context, q *backend.Query) ([]models.ForumComment, error) {
	rows, err := backend.FindAll[commentRow](ctx, s.client.DB, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.ForumComment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.comment())
	}
	return out, nil
}

// FetchPosts replaces the post list with the newest-first server snapshot.
func (s *Store) FetchPosts(ctx context.Context) error {
	s.begin()
	return s.end("fetch_posts", s.refreshPosts(ctx))
}

func (s *Store) refreshPosts(ctx context.Context) error {
	posts, err := s.loadPosts(ctx, postsQuery())
	if err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}
	s.mu.Lock()
	s.posts = posts
	s.mu.Unlock()
	return nil
}

// FetchComments replaces the comment list with postID's comments, oldest first.
func (s *Store) FetchComments(ctx context.Context, postID string) error {
	s.begin()
	return s.end("fetch_comments", s.refreshComments(ctx, postID))
}

func (s *Store) refreshComments(ctx context.Context, postID string) error {
	comments, err := s.loadComments(ctx, commentsQuery(postID))
	if err != nil {
		return fmt.Errorf("fetch comments: %w", err)
	}
	s.mu.Lock()
	s.comments = comments
	s.commentsPost = postID
	s.mu.Unlock()
	return nil
}

// SelectPost opens a post and loads its comments.
func (s *Store) SelectPost(ctx context.Context, id string) error {
	s.begin()
	posts, err := s.loadPosts(ctx, postsQuery().Eq("_id", id))
	if err != nil {
		return s.end("select_post", fmt.Errorf("load post: %w", err))
	}
	if len(posts) == 0 {
		return s.end("select_post", backend.ErrNotFound)
	}
	s.mu.Lock()
	s.selected = &posts[0]
	s.mu.Unlock()
	return s.end("select_post", s.refreshComments(ctx, id))
}

// ClearSelection closes the open post and drops its comments.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.clearSelectionLocked()
	s.mu.Unlock()
}

func (s *Store) clearSelectionLocked() {
	s.selected = nil
	s.comments = nil
	s.commentsPost = ""
}

// authorID returns the session user's id, failing fast when signed out, and
// refuses restricted users.
func (s *Store) authorID(ctx context.Context) (string, error) {
	sess := s.client.Session()
	if sess == nil || sess.AccessToken == "" {
		return "", backend.ErrNoSession
	}
	id := sess.User.ID
	if id == "" {
		u, err := s.client.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		id = u.ID
	}
	p, err := backend.FindOne[models.Profile](ctx, s.client.DB,
		backend.From(profilesTable).Eq("_id", id).Select("is_restricted"))
	switch {
	case errors.Is(err, backend.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("load author: %w", err)
	case p.IsRestricted:
		return "", ErrRestricted
	}
	return id, nil
}

// CreatePost inserts a post by the session user and re-fetches the list.
func (s *Store) CreatePost(ctx context.Context, in PostInput) (*models.ForumPost, error) {
	in.Title = htmlsanitize.StripTags(in.Title)
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	uid, err := s.authorID(ctx)
	if err != nil {
		return nil, err
	}

	s.begin()
	now := s.now()
	p := models.ForumPost{
		ID:        uuid.NewString(),
		AuthorID:  uid,
		Title:     in.Title,
		Content:   htmlsanitize.PrepareContent(in.Content),
		Resources: in.Resources,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.client.DB.Insert(ctx, PostsTable, p); err != nil {
		return nil, s.end("create_post", fmt.Errorf("create post: %w", err))
	}
	s.settle("create_post", s.refreshPosts(ctx))
	return &p, nil
}

// CreateComment inserts a comment on postID and re-fetches its comments.
func (s *Store) CreateComment(ctx context.Context, postID, content string) (*models.ForumComment, error) {
	if res := inputval.Validate(commentInput{Content: content}); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	uid, err := s.authorID(ctx)
	if err != nil {
		return nil, err
	}

	s.begin()
	n, err := s.client.DB.Count(ctx, backend.From(PostsTable).Eq("_id", postID))
	if err != nil {
		return nil, s.end("create_comment", fmt.Errorf("check post: %w", err))
	}
	if n == 0 {
		return nil, s.end("create_comment", backend.ErrNotFound)
	}
	c := models.ForumComment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  uid,
		Content:   htmlsanitize.PrepareContent(content),
		CreatedAt: s.now(),
	}
	if _, err := s.client.DB.Insert(ctx, CommentsTable, c); err != nil {
		return nil, s.end("create_comment", fmt.Errorf("create comment: %w", err))
	}
	s.settle("create_comment", s.refreshComments(ctx, postID))
	return &c, nil
}

// DeletePost removes a post and its comments, then re-fetches the list.
// Deleting the open post clears the selection.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.begin()
	if _, err := s.client.DB.Delete(ctx, backend.From(CommentsTable).Eq("post_id", id)); err != nil {
		return s.end("delete_post", fmt.Errorf("delete comments: %w", err))
	}
	if _, err := s.client.DB.Delete(ctx, backend.From(PostsTable).Eq("_id", id)); err != nil {
		return s.end("delete_post", fmt.Errorf("delete post: %w", err))
	}
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == id {
		s.clearSelectionLocked()
	}
	s.mu.Unlock()
	s.settle("delete_post", s.refreshPosts(ctx))
	return nil
}

// DeleteComment removes a comment and re-fetches the loaded comment list.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.begin()
	if _, err := s.client.DB.Delete(ctx, backend.From(CommentsTable).Eq("_id", id)); err != nil {
		return s.end("delete_comment", fmt.Errorf("delete comment: %w", err))
	}
	s.mu.RLock()
	postID := s.commentsPost
	s.mu.RUnlock()
	if postID == "" {
		return s.end("delete_comment", nil)
	}
	s.settle("delete_comment", s.refreshComments(ctx, postID))
	return nil
}

// SetFlagged marks or clears a post or comment for moderation.
func (s *Store) SetFlagged(ctx context.Context, kind, id string, flagged bool) error {
	var table string
	switch kind {
	case KindPost:
		table = PostsTable
	case KindComment:
		table = CommentsTable
	default:
		return ErrUnknownKind
	}

	s.begin()
	n, err := s.client.DB.Update(ctx, backend.From(table).Eq("_id", id), backend.Set{"flagged": flagged})
	if err != nil {
		return s.end("set_flagged", fmt.Errorf("flag %s: %w", kind, err))
	}
	if n == 0 {
		return s.end("set_flagged", backend.ErrNotFound)
	}

	s.mu.Lock()
	for i := range s.posts {
		if kind == KindPost && s.posts[i].ID == id {
			s.posts[i].Flagged = flagged
		}
	}
	if kind == KindPost && s.selected != nil && s.selected.ID == id {
		s.selected.Flagged = flagged
	}
	for i := range s.comments {
		if kind == KindComment && s.comments[i].ID == id {
			s.comments[i].Flagged = flagged
		}
	}
	s.mu.Unlock()
	return s.end("set_flagged", nil)
}

// Owner returns the author id of a post or comment.
func (s *Store) Owner(ctx context.Context, kind, id string) (string, error) {
	var table string
	switch kind {
	case KindPost:
		table = PostsTable
	case KindComment:
		table = CommentsTable
	default:
		return "", ErrUnknownKind
	}
	type ownerRow struct {
		AuthorID string `bson:"author_id"`
	}
	row, err := backend.FindOne[ownerRow](ctx, s.client.DB, backend.From(table).Eq("_id", id).Select("author_id"))
	if err != nil {
		return "", err
	}
	return row.AuthorID, nil
}

// FetchFlagged returns every flagged post and comment, newest first.
func (s *Store) FetchFlagged(ctx context.Context) (Flagged, error) {
	s.begin()
	posts, err := s.loadPosts(ctx, postsQuery().Eq("flagged", true))
	if err != nil {
		return Flagged{}, s.end("fetch_flagged", fmt.Errorf("fetch flagged posts: %w", err))
	}
	comments, err := s.loadComments(ctx, backend.From(CommentsTable).Eq("flagged", true).
		Embed("author", profilesTable, "author_id", "_id").
		OrderBy("created_at", true))
	if err != nil {
		return Flagged{}, s.end("fetch_flagged", fmt.Errorf("fetch flagged comments: %w", err))
	}
	return Flagged{Posts: posts, Comments: comments}, s.end("fetch_flagged", nil)
}

// Search filters the fetched posts by title or body text, ignoring case and
// diacritics. An empty query returns every post.
func (s *Store) Search(query string) []models.ForumPost {
	q := text.Fold(strings.TrimSpace(query))
	posts := s.Posts()
	if q == "" {
		return posts
	}
	out := []models.ForumPost{}
	for _, p := range posts {
		if strings.Contains(text.Fold(p.Title), q) ||
			strings.Contains(text.Fold(htmlsanitize.StripTags(p.Content)), q) {
			out = append(out, p)
		}
	}
	return out
}
