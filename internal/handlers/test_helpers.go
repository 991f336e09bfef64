package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/libshelf/accounts/internal/auth"
	"github.com/libshelf/accounts/internal/models"
	"github.com/libshelf/accounts/internal/services"
	pkghttp "github.com/libshelf/accounts/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds member claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, userID int, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Role:     models.RoleMember,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithAdminContext adds admin claims to the request context
func WithAdminContext(req *http.Request, userID int, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Role:     models.RoleAdmin,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error message mismatch")
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc           func(ctx context.Context, input services.RegisterInput) (*services.RegisterResult, error)
	LoginFunc              func(ctx context.Context, username, password string) (*services.LoginResult, error)
	VerifyEmailFunc        func(ctx context.Context, token string) (*models.User, error)
	ResendVerificationFunc func(ctx context.Context, username string) (string, error)
	ForgotPasswordFunc     func(ctx context.Context, username string) (string, error)
	VerifyOTPFunc          func(ctx context.Context, username, code string) (int, error)
	ResetPasswordFunc      func(ctx context.Context, username, code, newPassword string) error
}

func (m *MockAccountService) Register(ctx context.Context, input services.RegisterInput) (*services.RegisterResult, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, input)
}

func (m *MockAccountService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, username, password)
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.VerifyEmailFunc(ctx, token)
}

func (m *MockAccountService) ResendVerification(ctx context.Context, username string) (string, error) {
	if m.ResendVerificationFunc == nil {
		return "", models.ErrNotFound
	}
	return m.ResendVerificationFunc(ctx, username)
}

func (m *MockAccountService) ForgotPassword(ctx context.Context, username string) (string, error) {
	if m.ForgotPasswordFunc == nil {
		return "", models.ErrNotFound
	}
	return m.ForgotPasswordFunc(ctx, username)
}

func (m *MockAccountService) VerifyOTP(ctx context.Context, username, code string) (int, error) {
	if m.VerifyOTPFunc == nil {
		return 0, models.ErrOTPNotFound
	}
	return m.VerifyOTPFunc(ctx, username, code)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, username, code, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrOTPNotFound
	}
	return m.ResetPasswordFunc(ctx, username, code, newPassword)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserByIDFunc func(ctx context.Context, id int) (*models.User, error)
	ListUsersFunc   func(ctx context.Context) ([]*models.User, error)
	UpdateUserFunc  func(ctx context.Context, id int, input services.UpdateUserInput) (*models.User, error)
	DeleteUserFunc  func(ctx context.Context, id int) error
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	if m.GetUserByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserByIDFunc(ctx, id)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id int, input services.UpdateUserInput) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, id, input)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id int) error {
	if m.DeleteUserFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteUserFunc(ctx, id)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be extracted
// by the chi router from the URL path.
//
// Example usage:
//
//	req := httptest.NewRequest("PUT", "/api/users/3", body)
//	req = WithChiRouteContext(req, map[string]string{"id": "3"})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
