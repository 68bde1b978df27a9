package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

// Analytics summarises one member's forum activity and warnings.
type Analytics struct {
	UserID         string     `json:"user_id"`
	TotalPosts     int        `json:"total_posts"`
	TotalComments  int        `json:"total_comments"`
	TotalWarnings  int        `json:"total_warnings"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
	PostsPerDay    float64    `json:"posts_per_day"`
	CommentsPerDay float64    `json:"comments_per_day"`
	WarningsPerDay float64    `json:"warnings_per_day"`
}

// CalculateAveragePerDay divides the number of timestamps by the days
// between the oldest and newest, with a floor of one day. An empty list
// yields 0.
func CalculateAveragePerDay(times []time.Time) float64 {
	if len(times) == 0 {
		return 0
	}
	oldest, newest := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}
	days := newest.Sub(oldest).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(len(times)) / days
}

func latest(times []time.Time) (time.Time, bool) {
	var out time.Time
	for _, t := range times {
		if t.After(out) {
			out = t
		}
	}
	return out, !out.IsZero()
}

type stampRow struct {
	CreatedAt time.Time `bson:"created_at"`
}

func (s *Store) stamps(ctx context.Context, q *backend.Query) ([]time.Time, error) {
	rows, err := backend.FindAll[stampRow](ctx, s.client.DB, q.Select("created_at"))
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.CreatedAt
	}
	return out, nil
}

// FetchUserAnalytics reads the member's posts, comments and warnings and
// derives totals, last activity and per-day rates. A failed read is logged
// and counts as empty.
func (s *Store) FetchUserAnalytics(ctx context.Context, userID string) *Analytics {
	s.begin()
	read := func(what string, q *backend.Query) []time.Time {
		times, err := s.stamps(ctx, q)
		if err != nil {
			s.log.Warn("user analytics read failed",
				zap.String("user_id", userID),
				zap.String("read", what),
				zap.Error(err))
			return nil
		}
		return times
	}
	posts := read("posts", backend.From(PostsTable).Eq("author_id", userID))
	comments := read("comments", backend.From(CommentsTable).Eq("author_id", userID))
	warnings := read("warnings", backend.From(WarningsTable).Eq("user_id", userID))

	a := &Analytics{
		UserID:         userID,
		TotalPosts:     len(posts),
		TotalComments:  len(comments),
		TotalWarnings:  len(warnings),
		PostsPerDay:    CalculateAveragePerDay(posts),
		CommentsPerDay: CalculateAveragePerDay(comments),
		WarningsPerDay: CalculateAveragePerDay(warnings),
	}
	lp, okP := latest(posts)
	lc, okC := latest(comments)
	switch {
	case okP && (!okC || lp.After(lc)):
		a.LastActivity = &lp
	case okC:
		a.LastActivity = &lc
	}

	s.mu.Lock()
	s.analytics = a
	s.mu.Unlock()
	_ = s.end("analytics", nil)
	return a
}

// ClearAnalytics drops the loaded analytics panel.
func (s *Store) ClearAnalytics() {
	s.mu.Lock()
	s.analytics = nil
	s.mu.Unlock()
}
