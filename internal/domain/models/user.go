// internal/domain/models/user.go
package models

import "time"

// Profile mirrors one auth identity 1:1 (same ID) and carries everything the
// portal shows about a student or admin.
type Profile struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	StudentID    string    `bson:"student_id" json:"student_id"`
	FullName     string    `bson:"full_name" json:"full_name"`
	FullNameCI   string    `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	DepartmentID string    `bson:"department_id,omitempty" json:"department_id,omitempty"`
	Role         string    `bson:"role" json:"role"` // user | admin
	IsRestricted bool      `bson:"is_restricted" json:"is_restricted"`
	IsVisible    bool      `bson:"is_visible" json:"is_visible"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastActive   time.Time `bson:"last_active" json:"last_active"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Summary returns the embedded author shape used by forum rows.
func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

// ProfileSummary is the subset of a Profile embedded into forum rows.
type ProfileSummary struct {
	ID        string `bson:"_id" json:"id"`
	FullName  string `bson:"full_name" json:"full_name"`
	AvatarURL string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}
