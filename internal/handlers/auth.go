package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/libshelf/accounts/internal/models"
	"github.com/libshelf/accounts/internal/services"
	pkghttp "github.com/libshelf/accounts/pkg/http"
)

// AccountServiceInterface defines the interface for account lifecycle logic
type AccountServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.RegisterResult, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, username string) (string, error)
	ForgotPassword(ctx context.Context, username string) (string, error)
	VerifyOTP(ctx context.Context, username, code string) (int, error)
	ResetPassword(ctx context.Context, username, code, newPassword string) error
}

// AuthHandler handles account lifecycle HTTP requests
type AuthHandler struct {
	service AccountServiceInterface
	baseURL string
	devMode bool
}

// NewAuthHandler creates a new AuthHandler. In development mode the
// handler echoes verification tokens and OTP codes in responses so the
// flows can be exercised without a mail or SMS provider.
func NewAuthHandler(service AccountServiceInterface, baseURL string, devMode bool) *AuthHandler {
	return &AuthHandler{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		devMode: devMode,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Mobile   string `json:"mobile" validate:"required,mobile"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

// LoginRequest represents the request body for login. Username accepts
// either a username or an email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending
// verification email. Username accepts either a username or an email address.
type ResendVerificationRequest struct {
	Username string `json:"username" validate:"required"`
}

// ForgotPasswordRequest represents the request body for starting a password reset
type ForgotPasswordRequest struct {
	Username string `json:"username" validate:"required"`
}

// VerifyOTPRequest represents the request body for checking a password-reset code
type VerifyOTPRequest struct {
	Username string `json:"username" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6"`
}

// ResetPasswordRequest represents the request body for completing a password reset
type ResetPasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *AuthHandler) verificationURL(token string) string {
	return fmt.Sprintf("%s/api/users/verify-email?token=%s", h.baseURL, token)
}

// Register handles user registration
// @Summary Register a new account
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Mobile:   req.Mobile,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateUsername),
			errors.Is(err, models.ErrDuplicateEmail),
			errors.Is(err, models.ErrDuplicateMobile):
			// Duplicate fields are reported explicitly at registration.
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			// Password policy violations from the service layer.
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    NewUserResponse(result.User),
	}
	if h.devMode && result.VerificationToken != "" {
		resp["verificationToken"] = result.VerificationToken
		resp["verificationUrl"] = h.verificationURL(result.VerificationToken)
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles user login
// @Summary Log in with username or email
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} map[string]any
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var notVerified *models.EmailNotVerifiedError
		switch {
		case errors.As(err, &notVerified):
			// The client needs the user id to offer a resend affordance.
			pkghttp.WriteJSON(w, http.StatusForbidden, map[string]any{
				"error":                "Email address not verified. Please verify your email before logging in.",
				"requiresVerification": true,
				"userId":               notVerified.UserID,
			})
		case errors.Is(err, models.ErrUnauthorized):
			// Combined message so callers cannot probe which field was wrong.
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  NewUserResponse(result.User),
	})
}

// VerifyEmail handles the verification link from the email. It renders a
// small HTML page because the link is opened in a browser, not by an API
// client.
// @Summary Verify email address
// @Param token query string true "Verification token"
// @Produce html
// @Success 200
// @Failure 400
// @Router /api/users/verify-email [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeVerificationPage(w, http.StatusBadRequest, "Verification failed",
			"The verification link is missing its token. Please use the link from your email.")
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTokenExpired):
			writeVerificationPage(w, http.StatusBadRequest, "Link expired",
				"This verification link has expired. Log in to request a new one.")
		case errors.Is(err, models.ErrNotFound):
			writeVerificationPage(w, http.StatusBadRequest, "Verification failed",
				"This verification link is invalid or has already been used.")
		default:
			writeVerificationPage(w, http.StatusInternalServerError, "Something went wrong",
				"We could not verify your email right now. Please try again later.")
		}
		return
	}

	// The username is user-controlled input on an HTML page.
	writeVerificationPage(w, http.StatusOK, "Email verified",
		fmt.Sprintf("Thanks %s, your email address has been verified. You can now log in.", html.EscapeString(user.Username)))
}

// ResendVerification handles resending of verification email
// @Summary Resend verification email
// @Accept json
// @Param request body ResendVerificationRequest true "Resend verification request"
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /api/users/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	token, err := h.service.ResendVerification(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyVerified):
			pkghttp.WriteBadRequest(w, "Email is already verified")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "Verification email sent. Please check your inbox.",
	}
	if h.devMode && token != "" {
		resp["verificationToken"] = token
		resp["verificationUrl"] = h.verificationURL(token)
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword handles the start of the password-reset flow
// @Summary Request a password-reset code
// @Accept json
// @Param request body ForgotPasswordRequest true "Forgot password request"
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /api/users/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	code, err := h.service.ForgotPassword(r.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrNoMobile):
			pkghttp.WriteBadRequest(w, "No mobile number registered for this account")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "A one-time code has been sent to your registered mobile number.",
	}
	if h.devMode && code != "" {
		resp["otp"] = code
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyOTP handles checking a password-reset code
// @Summary Verify a password-reset code
// @Accept json
// @Param request body VerifyOTPRequest true "Verify OTP request"
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /api/users/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID, err := h.service.VerifyOTP(r.Context(), req.Username, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrOTPExpired):
			pkghttp.WriteBadRequest(w, "The code has expired. Please request a new one.")
		case errors.Is(err, models.ErrOTPMismatch), errors.Is(err, models.ErrOTPNotFound):
			pkghttp.WriteBadRequest(w, "Invalid code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Code verified. You can now reset your password.",
		"userId":  userID,
	})
}

// ResetPassword handles completing the password-reset flow
// @Summary Reset password with a verified code
// @Accept json
// @Param request body ResetPasswordRequest true "Reset password request"
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /api/users/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Username, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrOTPExpired):
			pkghttp.WriteBadRequest(w, "The code has expired. Please request a new one.")
		case errors.Is(err, models.ErrOTPMismatch), errors.Is(err, models.ErrOTPNotFound):
			pkghttp.WriteBadRequest(w, "Invalid code")
		case errors.Is(err, models.ErrOTPNotVerified):
			pkghttp.WriteBadRequest(w, "The code has not been verified yet")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password has been reset. You can now log in with your new password.",
	})
}

// writeVerificationPage renders the minimal browser-facing page behind
// the emailed verification link.
func writeVerificationPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; max-width: 40em; margin: 4em auto;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>
`, title, title, body)
}
