package metricsstore

import (
	"context"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
)

// Counts is the set of totals shown on the admin dashboard.
type Counts struct {
	Members          int64 `json:"members"`
	Admins           int64 `json:"admins"`
	Restricted       int64 `json:"restricted"`
	Departments      int64 `json:"departments"`
	Resources        int64 `json:"resources"`
	PendingResources int64 `json:"pending_resources"`
	Posts            int64 `json:"posts"`
	FlaggedPosts     int64 `json:"flagged_posts"`
	FlaggedComments  int64 `json:"flagged_comments"`
	Events           int64 `json:"events"`
}

// FetchDashboardCounts returns the high-level counts used by the admin
// dashboard. Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db backend.Database) Counts {
	var out Counts
	count := func(dst *int64, q *backend.Query) {
		if n, err := db.Count(ctx, q); err == nil {
			*dst = n
		}
	}

	count(&out.Members, backend.From("profiles").Eq("role", models.RoleUser))
	count(&out.Admins, backend.From("profiles").Eq("role", models.RoleAdmin))
	count(&out.Restricted, backend.From("profiles").Eq("is_restricted", true))
	count(&out.Departments, backend.From("departments"))
	count(&out.Resources, backend.From("resources"))
	count(&out.PendingResources, backend.From("resources").Eq("status", models.StatusPending))
	count(&out.Posts, backend.From("forum_posts"))
	count(&out.FlaggedPosts, backend.From("forum_posts").Eq("flagged", true))
	count(&out.FlaggedComments, backend.From("forum_comments").Eq("flagged", true))
	count(&out.Events, backend.From("events"))

	return out
}
