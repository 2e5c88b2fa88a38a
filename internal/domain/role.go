package domain

import "fmt"

// Role is the coarse permission level the backend assigns to an account.
type Role string

// Roles issued by the backend
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// NewRole creates a Role with validation
func NewRole(value string) (Role, error) {
	r := Role(value)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks if the role is one the backend issues
func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return nil
	default:
		return fmt.Errorf("invalid role %q: must be admin, teacher, or student", string(r))
	}
}

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

// IsPrivileged reports whether the role bypasses role checks.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin
}

// Allows reports whether a holder of r may act in any of the required roles.
// Admin is always allowed; otherwise r must be listed. An empty list allows
// nobody but admin.
func (r Role) Allows(required ...Role) bool {
	if r.IsPrivileged() {
		return true
	}
	for _, want := range required {
		if r == want {
			return true
		}
	}
	return false
}
