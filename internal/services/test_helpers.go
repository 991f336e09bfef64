package services

import (
	"context"
	"time"

	"github.com/libshelf/accounts/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByUsernameOrEmailFunc func(ctx context.Context, key string) (*models.User, error)
	GetByIDFunc              func(ctx context.Context, id int) (*models.User, error)
	GetByMobileFunc          func(ctx context.Context, mobile string) (*models.User, error)
	ListFunc                 func(ctx context.Context) ([]*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc               func(ctx context.Context, id int, user *models.User) (*models.User, error)
	SetPasswordFunc          func(ctx context.Context, id int, hash string) error
	DeleteFunc               func(ctx context.Context, id int) error
}

func (m *MockUserRepository) GetByUsernameOrEmail(ctx context.Context, key string) (*models.User, error) {
	if m.GetByUsernameOrEmailFunc != nil {
		return m.GetByUsernameOrEmailFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	if m.GetByMobileFunc != nil {
		return m.GetByMobileFunc(ctx, mobile)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id int, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetPassword(ctx context.Context, id int, hash string) error {
	if m.SetPasswordFunc != nil {
		return m.SetPasswordFunc(ctx, id, hash)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	IssueTokenFunc func(user *models.User) (string, error)
}

func (m *MockTokenIssuer) IssueToken(user *models.User) (string, error) {
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(user)
	}
	return "test-token", nil
}

// MockVerificationManager implements VerificationManager for testing
type MockVerificationManager struct {
	IssueFunc   func(ctx context.Context, userID int, email string) (string, error)
	ConsumeFunc func(ctx context.Context, token string) (int, error)
}

func (m *MockVerificationManager) Issue(ctx context.Context, userID int, email string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID, email)
	}
	return "test-verification-token", nil
}

func (m *MockVerificationManager) Consume(ctx context.Context, token string) (int, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, token)
	}
	return 0, models.ErrNotFound
}

// MockOTPManager implements OTPManager for testing
type MockOTPManager struct {
	IssueFunc           func(ctx context.Context, userID int) (string, error)
	VerifyFunc          func(ctx context.Context, userID int, code string) error
	ConsumeForResetFunc func(ctx context.Context, userID int, code string) error
}

func (m *MockOTPManager) Issue(ctx context.Context, userID int) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID)
	}
	return "123456", nil
}

func (m *MockOTPManager) Verify(ctx context.Context, userID int, code string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, code)
	}
	return nil
}

func (m *MockOTPManager) ConsumeForReset(ctx context.Context, userID int, code string) error {
	if m.ConsumeForResetFunc != nil {
		return m.ConsumeForResetFunc(ctx, userID, code)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SendOTPFunc func(ctx context.Context, mobile, code string, expiresAt time.Time) error
}

func (m *MockSMSService) SendOTP(ctx context.Context, mobile, code string, expiresAt time.Time) error {
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, mobile, code, expiresAt)
	}
	return nil
}

// NewTestUser builds a verified member for tests
func NewTestUser(id int, username, email string) *models.User {
	return &models.User{
		ID:            id,
		Username:      username,
		Email:         email,
		Role:          models.RoleMember,
		EmailVerified: true,
		MemberSince:   time.Now(),
	}
}

// NewTestUserWithPassword builds a verified member with a stored hash
func NewTestUserWithPassword(id int, username, email, passwordHash string) *models.User {
	user := NewTestUser(id, username, email)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserUnverified builds a member who has not verified their email
func NewTestUserUnverified(id int, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	user.EmailVerified = false
	return user
}

// NewTestAdmin builds an admin account
func NewTestAdmin(id int, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	user.Role = models.RoleAdmin
	return user
}
