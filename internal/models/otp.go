package models

import (
	"time"
)

// OTPRecord is the live one-time code issued for a password reset.
// At most one record exists per user id; reissuing replaces the prior one.
type OTPRecord struct {
	UserID    int       `json:"user_id"`
	Code      string    `json:"-"` // 6-digit numeric string, never logged
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the code has expired
func (r *OTPRecord) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
