package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/libshelf/accounts/internal/auth"
	"github.com/libshelf/accounts/internal/models"
	"github.com/libshelf/accounts/internal/services"
	pkghttp "github.com/libshelf/accounts/pkg/http"
)

// UserServiceInterface defines the interface for user profile logic
type UserServiceInterface interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, id int, input services.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id int) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Request/Response DTOs

// UpdateUserRequest represents the request body for updating a user.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Mobile   *string `json:"mobile" validate:"omitempty,mobile"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

// UserResponse represents a user in the HTTP response. The password
// hash never leaves the service layer.
type UserResponse struct {
	ID            int    `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role"`
	Avatar        string `json:"avatar,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	MemberSince   string `json:"memberSince"`
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
}

// NewUserResponse converts a user model to a sanitized response DTO
func NewUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Mobile:        user.Mobile,
		Name:          user.Name,
		Role:          user.Role,
		Avatar:        user.Avatar,
		EmailVerified: user.EmailVerified,
		MemberSince:   user.MemberSince.UTC().Format(time.RFC3339),
	}
}

// Me returns the authenticated user's own record
//
// @Summary Get the current user
// @Security BearerAuth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Access denied")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The account was deleted while its token was still valid.
			pkghttp.WriteUnauthorized(w, "Access denied")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewUserResponse(user))
}

// GetUser retrieves a user by ID
//
// @Summary Get user by ID
// @Security BearerAuth
// @Param id path int true "User ID"
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewUserResponse(user))
}

// ListUsers retrieves all users
//
// @Summary List users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := &ListUsersResponse{
		Users: make([]*UserResponse, len(users)),
		Total: len(users),
	}
	for i, user := range users {
		response.Users[i] = NewUserResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// UpdateUser updates an existing user's profile. Users may update their
// own record; admins may update anyone's.
//
// @Summary Update a user
// @Security BearerAuth
// @Param id path int true "User ID"
// @Accept json
// @Param request body UpdateUserRequest true "Update user request"
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := checkUserAccess(r, userID); err != nil {
		pkghttp.WriteForbidden(w, "You cannot modify this user")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), userID, services.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Name:     req.Name,
		Avatar:   req.Avatar,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrDuplicateUsername),
			errors.Is(err, models.ErrDuplicateEmail),
			errors.Is(err, models.ErrDuplicateMobile):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewUserResponse(updatedUser))
}

// DeleteUser deletes a user. The route is admin-gated by middleware.
//
// @Summary Delete a user
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

// parseUserID extracts the numeric user id from the route.
func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// checkUserAccess verifies that the authenticated user can modify the
// requested record. Users own their record; admins own all of them.
func checkUserAccess(r *http.Request, requestedUserID int) error {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		return errors.New("user not found in context")
	}

	if claims.UserID == requestedUserID {
		return nil
	}

	if claims.Role == models.RoleAdmin {
		return nil
	}

	return errors.New("insufficient permissions")
}
