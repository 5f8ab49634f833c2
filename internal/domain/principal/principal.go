// Package principal defines the authenticated actor model.
package principal

import (
	"fmt"
	"time"
)

// Role is the closed set of access levels.
type Role string

const (
	RoleAnalyst    Role = "analyst"
	RoleStrategist Role = "strategist"
	RoleExecutive  Role = "executive"
	RoleAdmin      Role = "admin"
)

// Parse validates a role string against the closed set.
func Parse(s string) (Role, error) {
	switch Role(s) {
	case RoleAnalyst, RoleStrategist, RoleExecutive, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal is a registered user. PasswordHash never leaves the storage and
// auth layers; handlers only see the Projection.
type Principal struct {
	ID           string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Projection is the minimal view of a principal attached to a request
// context after credential verification.
type Projection struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Project strips credential material from a principal.
func (p Principal) Project() Projection {
	return Projection{ID: p.ID, Email: p.Email, Role: p.Role}
}
