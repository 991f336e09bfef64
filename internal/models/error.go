package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Registration conflicts are reported per field, matching the
	// intentionally-informative duplicate messages of the register endpoint.
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateMobile   = errors.New("mobile number already registered")

	// Account lifecycle errors
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrAlreadyVerified  = errors.New("email is already verified")
	ErrNoMobile         = errors.New("mobile number not registered for this account")

	// OTP / verification token errors
	ErrOTPNotFound    = errors.New("otp not found or expired")
	ErrOTPExpired     = errors.New("otp has expired")
	ErrOTPMismatch    = errors.New("invalid otp")
	ErrOTPNotVerified = errors.New("otp not verified")
	ErrTokenExpired   = errors.New("verification token has expired")
)

// EmailNotVerifiedError carries the blocked user's id so the login
// response can offer a resend-verification affordance.
type EmailNotVerifiedError struct {
	UserID int
}

func (e *EmailNotVerifiedError) Error() string {
	return ErrEmailNotVerified.Error()
}

// Is makes errors.Is(err, ErrEmailNotVerified) match.
func (e *EmailNotVerifiedError) Is(target error) bool {
	return target == ErrEmailNotVerified
}
