package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libshelf/accounts/internal/models"
	pkgauth "github.com/libshelf/accounts/pkg/auth"
	pkglogger "github.com/libshelf/accounts/pkg/logger"
)

func newAccountService(
	repo UserRepository,
	tokens TokenIssuer,
	verification VerificationManager,
	otp OTPManager,
) *AccountService {
	logger := slog.Default()
	if repo == nil {
		repo = &MockUserRepository{}
	}
	if tokens == nil {
		tokens = &MockTokenIssuer{}
	}
	if verification == nil {
		verification = &MockVerificationManager{}
	}
	if otp == nil {
		otp = &MockOTPManager{}
	}
	return NewAccountService(
		repo,
		tokens,
		verification,
		otp,
		&MockSMSService{},
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

// ============================================================================
// Register
// ============================================================================

func TestAccountService_Register_Success(t *testing.T) {
	var createdUser *models.User
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = 7
			createdUser = user
			return user, nil
		},
	}
	verification := &MockVerificationManager{
		IssueFunc: func(ctx context.Context, userID int, email string) (string, error) {
			assert.Equal(t, 7, userID)
			return "issued-token", nil
		},
	}

	svc := newAccountService(repo, nil, verification, nil)

	result, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		Mobile:   "+1 555 123 4567",
		Name:     "Alice",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 7, result.User.ID)
	assert.Equal(t, "issued-token", result.VerificationToken)

	require.NotNil(t, createdUser)
	assert.False(t, createdUser.EmailVerified, "self-registered accounts start unverified")
	assert.Equal(t, models.RoleMember, createdUser.Role)
	assert.Equal(t, "+15551234567", createdUser.Mobile, "mobile is normalized before storage")
	assert.True(t, pkgauth.IsHashed(createdUser.PasswordHash), "password must be stored hashed")
	assert.NoError(t, pkgauth.ComparePassword(createdUser.PasswordHash, "password1"))
}

func TestAccountService_Register_ShortPassword(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})

	require.Error(t, err)
}

func TestAccountService_Register_DuplicateUsername(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrDuplicateUsername
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})

	assert.ErrorIs(t, err, models.ErrDuplicateUsername)
}

func TestAccountService_Register_DuplicateMobile(t *testing.T) {
	created := false
	repo := &MockUserRepository{
		GetByMobileFunc: func(ctx context.Context, mobile string) (*models.User, error) {
			assert.Equal(t, "+15551234567", mobile)
			return NewTestUser(2, "other", "other@example.com"), nil
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = true
			return user, nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
		Mobile:   "+1 555 123 4567",
	})

	assert.ErrorIs(t, err, models.ErrDuplicateMobile)
	assert.False(t, created, "a taken mobile number must be rejected before the insert")
}

func TestAccountService_Register_SucceedsWhenEmailDeliveryFails(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = 3
			return user, nil
		},
	}
	verification := &MockVerificationManager{
		IssueFunc: func(ctx context.Context, userID int, email string) (string, error) {
			return "", errors.New("ses unavailable")
		},
	}
	svc := newAccountService(repo, nil, verification, nil)

	result, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})

	require.NoError(t, err, "the account is created even when the email cannot be sent")
	assert.Empty(t, result.VerificationToken)
}

// ============================================================================
// Login
// ============================================================================

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func TestAccountService_Login_Success(t *testing.T) {
	user := NewTestUserWithPassword(5, "alice", "alice@example.com", hashFor(t, "password1"))
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			assert.Equal(t, "alice", key)
			return user, nil
		},
	}
	tokens := &MockTokenIssuer{
		IssueTokenFunc: func(u *models.User) (string, error) {
			assert.Equal(t, 5, u.ID)
			return "session-token", nil
		},
	}
	svc := newAccountService(repo, tokens, nil, nil)

	result, err := svc.Login(context.Background(), "alice", "password1")

	require.NoError(t, err)
	assert.Equal(t, "session-token", result.Token)
	assert.Equal(t, 5, result.User.ID)
}

func TestAccountService_Login_UnknownUser(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	_, err := svc.Login(context.Background(), "ghost", "password1")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	user := NewTestUserWithPassword(5, "alice", "alice@example.com", hashFor(t, "password1"))
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Login(context.Background(), "alice", "wrong-password")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_UnverifiedEmail(t *testing.T) {
	user := NewTestUserUnverified(9, "bob", "bob@example.com")
	user.PasswordHash = hashFor(t, "password1")
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Login(context.Background(), "bob", "password1")

	assert.ErrorIs(t, err, models.ErrEmailNotVerified)

	var nvErr *models.EmailNotVerifiedError
	require.ErrorAs(t, err, &nvErr)
	assert.Equal(t, 9, nvErr.UserID, "the error carries the user id for the resend affordance")
}

func TestAccountService_Login_UnverifiedWithWrongPassword(t *testing.T) {
	// The verified gate runs before the password compare, so an
	// unverified account gets the resend affordance either way and the
	// response never confirms whether the password was right.
	user := NewTestUserUnverified(9, "bob", "bob@example.com")
	user.PasswordHash = hashFor(t, "password1")
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Login(context.Background(), "bob", "wrong")

	assert.ErrorIs(t, err, models.ErrEmailNotVerified)
	assert.NotErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_MigratesPlaintextCredential(t *testing.T) {
	admin := NewTestAdmin(1, "admin", "admin@library.com")
	admin.PasswordHash = "admin" // seeded plaintext credential

	var migratedHash string
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return admin, nil
		},
		SetPasswordFunc: func(ctx context.Context, id int, hash string) error {
			assert.Equal(t, 1, id)
			migratedHash = hash
			return nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	result, err := svc.Login(context.Background(), "admin", "admin")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	require.NotEmpty(t, migratedHash, "plaintext credential must be rehashed on first login")
	assert.True(t, pkgauth.IsHashed(migratedHash))
	assert.NoError(t, pkgauth.ComparePassword(migratedHash, "admin"))
}

func TestAccountService_Login_PlaintextWrongPassword(t *testing.T) {
	admin := NewTestAdmin(1, "admin", "admin@library.com")
	admin.PasswordHash = "admin"
	setPasswordCalled := false
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return admin, nil
		},
		SetPasswordFunc: func(ctx context.Context, id int, hash string) error {
			setPasswordCalled = true
			return nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.Login(context.Background(), "admin", "not-admin")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.False(t, setPasswordCalled, "a failed login must not migrate the credential")
}

// ============================================================================
// Verify Email
// ============================================================================

func TestAccountService_VerifyEmail_Success(t *testing.T) {
	user := NewTestUserUnverified(4, "carol", "carol@example.com")
	var updated *models.User
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return user, nil
		},
		UpdateFunc: func(ctx context.Context, id int, u *models.User) (*models.User, error) {
			updated = u
			return u, nil
		},
	}
	verification := &MockVerificationManager{
		ConsumeFunc: func(ctx context.Context, token string) (int, error) {
			assert.Equal(t, "valid-token", token)
			return 4, nil
		},
	}
	svc := newAccountService(repo, nil, verification, nil)

	got, err := svc.VerifyEmail(context.Background(), "valid-token")

	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	require.NotNil(t, updated)
	assert.True(t, updated.EmailVerified)
}

func TestAccountService_VerifyEmail_ExpiredToken(t *testing.T) {
	verification := &MockVerificationManager{
		ConsumeFunc: func(ctx context.Context, token string) (int, error) {
			return 0, models.ErrTokenExpired
		},
	}
	svc := newAccountService(nil, nil, verification, nil)

	_, err := svc.VerifyEmail(context.Background(), "stale-token")

	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestAccountService_VerifyEmail_UnknownToken(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	_, err := svc.VerifyEmail(context.Background(), "unknown-token")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================================
// Resend Verification
// ============================================================================

func TestAccountService_ResendVerification_Success(t *testing.T) {
	user := NewTestUserUnverified(4, "carol", "carol@example.com")
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
	}
	verification := &MockVerificationManager{
		IssueFunc: func(ctx context.Context, userID int, email string) (string, error) {
			assert.Equal(t, 4, userID)
			assert.Equal(t, "carol@example.com", email)
			return "fresh-token", nil
		},
	}
	svc := newAccountService(repo, nil, verification, nil)

	token, err := svc.ResendVerification(context.Background(), "carol@example.com")

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestAccountService_ResendVerification_AlreadyVerified(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return NewTestUser(4, "carol", "carol@example.com"), nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.ResendVerification(context.Background(), "carol@example.com")

	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
}

func TestAccountService_ResendVerification_UnknownUser(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	_, err := svc.ResendVerification(context.Background(), "ghost@example.com")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================================
// Forgot Password / Verify OTP / Reset Password
// ============================================================================

func TestAccountService_ForgotPassword_Success(t *testing.T) {
	user := NewTestUser(6, "dave", "dave@example.com")
	user.Mobile = "+15551234567"
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
	}
	otp := &MockOTPManager{
		IssueFunc: func(ctx context.Context, userID int) (string, error) {
			assert.Equal(t, 6, userID)
			return "654321", nil
		},
	}
	svc := newAccountService(repo, nil, nil, otp)

	code, err := svc.ForgotPassword(context.Background(), "dave")

	require.NoError(t, err)
	assert.Equal(t, "654321", code)
}

func TestAccountService_ForgotPassword_NoMobile(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return NewTestUser(6, "dave", "dave@example.com"), nil
		},
	}
	svc := newAccountService(repo, nil, nil, nil)

	_, err := svc.ForgotPassword(context.Background(), "dave")

	assert.ErrorIs(t, err, models.ErrNoMobile)
}

func TestAccountService_ForgotPassword_UnknownUser(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	_, err := svc.ForgotPassword(context.Background(), "ghost")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_VerifyOTP_Success(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return NewTestUser(6, "dave", "dave@example.com"), nil
		},
	}
	otp := &MockOTPManager{
		VerifyFunc: func(ctx context.Context, userID int, code string) error {
			assert.Equal(t, 6, userID)
			assert.Equal(t, "654321", code)
			return nil
		},
	}
	svc := newAccountService(repo, nil, nil, otp)

	userID, err := svc.VerifyOTP(context.Background(), "dave", "654321")

	require.NoError(t, err)
	assert.Equal(t, 6, userID)
}

func TestAccountService_VerifyOTP_Mismatch(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return NewTestUser(6, "dave", "dave@example.com"), nil
		},
	}
	otp := &MockOTPManager{
		VerifyFunc: func(ctx context.Context, userID int, code string) error {
			return models.ErrOTPMismatch
		},
	}
	svc := newAccountService(repo, nil, nil, otp)

	_, err := svc.VerifyOTP(context.Background(), "dave", "000000")

	assert.ErrorIs(t, err, models.ErrOTPMismatch)
}

func TestAccountService_ResetPassword_Success(t *testing.T) {
	user := NewTestUserWithPassword(6, "dave", "dave@example.com", hashFor(t, "old-password"))
	var newHash string
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return user, nil
		},
		SetPasswordFunc: func(ctx context.Context, id int, hash string) error {
			newHash = hash
			return nil
		},
	}
	consumed := false
	otp := &MockOTPManager{
		ConsumeForResetFunc: func(ctx context.Context, userID int, code string) error {
			consumed = true
			return nil
		},
	}
	svc := newAccountService(repo, nil, nil, otp)

	err := svc.ResetPassword(context.Background(), "dave", "654321", "brand-new-pass")

	require.NoError(t, err)
	assert.True(t, consumed, "the otp must be consumed by the reset")
	require.NotEmpty(t, newHash)
	assert.NoError(t, pkgauth.ComparePassword(newHash, "brand-new-pass"))
}

func TestAccountService_ResetPassword_UnverifiedOTP(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, key string) (*models.User, error) {
			return NewTestUser(6, "dave", "dave@example.com"), nil
		},
	}
	otp := &MockOTPManager{
		ConsumeForResetFunc: func(ctx context.Context, userID int, code string) error {
			return models.ErrOTPNotVerified
		},
	}
	svc := newAccountService(repo, nil, nil, otp)

	err := svc.ResetPassword(context.Background(), "dave", "654321", "brand-new-pass")

	assert.ErrorIs(t, err, models.ErrOTPNotVerified)
}

func TestAccountService_ResetPassword_ShortPassword(t *testing.T) {
	svc := newAccountService(nil, nil, nil, nil)

	err := svc.ResetPassword(context.Background(), "dave", "654321", "tiny")

	require.Error(t, err)
}
