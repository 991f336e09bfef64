package models

import (
	"time"
)

// Role values assignable to a user.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID            int
	Username      string
	Email         string
	Mobile        string
	PasswordHash  string
	Name          string
	Role          string // "admin" or "member"
	Avatar        string // URL owned by the avatar subsystem, empty if unset
	EmailVerified bool
	MemberSince   time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
