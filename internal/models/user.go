package models

import (
	"strings"
	"time"
)

// UserRole identifies which population an account belongs to. The same email
// may hold one account per role.
type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleOwner    UserRole = "OWNER"
	RoleAdmin    UserRole = "ADMIN"
)

// Roles lists every supported role in route order.
var Roles = []UserRole{RoleCustomer, RoleOwner, RoleAdmin}

// ParseUserRole accepts a role name in any casing.
func ParseUserRole(value string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(value)))
	return role, role.Valid()
}

// Valid reports whether r is one of the supported roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// Label is the lower-case form used in routes and error messages.
func (r UserRole) Label() string {
	return strings.ToLower(string(r))
}

// User is an account stored in the users table. Two users are the same
// account only when their IDs match.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Summary is the public view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Active:    u.Active,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}
