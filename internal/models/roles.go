package models

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleClient UserRole = "client"
	UserRoleWorker UserRole = "worker"
)

// Valid reports whether the role is one of the three allowed roles.
// Login re-checks this defensively against corrupted or legacy rows.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleClient, UserRoleWorker:
		return true
	default:
		return false
	}
}
