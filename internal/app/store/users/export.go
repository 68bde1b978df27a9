package userstore

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/export"
	"github.com/dalemusser/freshershub/internal/backend"
)

var usersHeader = []string{
	"Name", "Email", "Student ID", "Department", "Role", "Restricted", "Visible", "Warnings", "Joined", "Last active",
}

// ExportUsers writes the loaded member list as an .xlsx workbook, with the
// warning count per member.
func (s *Store) ExportUsers(ctx context.Context, w io.Writer) error {
	users := s.Users()

	counts := make(map[string]int, len(users))
	type warnRow struct {
		UserID string `bson:"user_id"`
	}
	rows, err := backend.FindAll[warnRow](ctx, s.client.DB, backend.From(WarningsTable).Select("user_id"))
	if err != nil {
		return s.end("export", err)
	}
	for _, r := range rows {
		counts[r.UserID]++
	}

	sheet := export.SheetSpec{Title: "Users", Header: usersHeader}
	for _, p := range users {
		sheet.Rows = append(sheet.Rows, []string{
			p.FullName,
			p.Email,
			p.StudentID,
			p.DepartmentID,
			p.Role,
			strconv.FormatBool(p.IsRestricted),
			strconv.FormatBool(p.IsVisible),
			strconv.Itoa(counts[p.ID]),
			formatDate(p.CreatedAt),
			formatDate(p.LastActive),
		})
	}
	return s.end("export", export.Write(w, sheet))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
