package domain

import "slices"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// Principal is the authenticated caller, verified upstream.
type Principal struct {
	UserID string
	Roles  []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
