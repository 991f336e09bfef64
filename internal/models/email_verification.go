package models

import (
	"time"
)

// EmailVerificationRecord is the live email-confirmation token for a user.
// At most one record exists per user id; reissuing replaces the prior one.
type EmailVerificationRecord struct {
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"` // never expose the token value
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the token has expired
func (r *EmailVerificationRecord) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
