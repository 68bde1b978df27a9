package models

// Roles stored in Profile.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsValidRole reports whether r is one of the known roles.
func IsValidRole(r string) bool {
	return r == RoleUser || r == RoleAdmin
}
