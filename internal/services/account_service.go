package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/libshelf/accounts/internal/models"
	pkgauth "github.com/libshelf/accounts/pkg/auth"
	pkglogger "github.com/libshelf/accounts/pkg/logger"
)

// TokenIssuer defines the interface for minting session tokens
type TokenIssuer interface {
	IssueToken(user *models.User) (string, error)
}

// VerificationManager defines the interface for the email-verification flow
type VerificationManager interface {
	Issue(ctx context.Context, userID int, email string) (string, error)
	Consume(ctx context.Context, token string) (int, error)
}

// OTPManager defines the interface for the password-reset code flow
type OTPManager interface {
	Issue(ctx context.Context, userID int) (string, error)
	Verify(ctx context.Context, userID int, code string) error
	ConsumeForReset(ctx context.Context, userID int, code string) error
}

// AccountService drives the account lifecycle: registration, email
// verification, login, and the forgot-password reset flow.
type AccountService struct {
	repo         UserRepository
	tokens       TokenIssuer
	verification VerificationManager
	otp          OTPManager
	sms          SMSService
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	repo UserRepository,
	tokens TokenIssuer,
	verification VerificationManager,
	otp OTPManager,
	sms SMSService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AccountService {
	return &AccountService{
		repo:         repo,
		tokens:       tokens,
		verification: verification,
		otp:          otp,
		sms:          sms,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// RegisterInput carries the validated registration fields.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Mobile   string
	Name     string
}

// RegisterResult is the outcome of a successful registration. The
// verification token is only surfaced to the client in development mode.
type RegisterResult struct {
	User              *models.User
	VerificationToken string
}

// Register creates an unverified member account and starts the email
// verification flow.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	mobile := normalizeMobile(input.Mobile)
	if mobile != "" {
		if _, err := s.repo.GetByMobile(ctx, mobile); err == nil {
			return nil, models.ErrDuplicateMobile
		} else if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check mobile uniqueness", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	user := &models.User{
		Username:      strings.TrimSpace(input.Username),
		Email:         strings.TrimSpace(input.Email),
		Mobile:        mobile,
		PasswordHash:  hash,
		Name:          strings.TrimSpace(input.Name),
		Role:          models.RoleMember,
		EmailVerified: false,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if isDuplicateErr(err) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.verification.Issue(ctx, created.ID, created.Email)
	if err != nil {
		// The account exists; the user can request a resend later.
		s.logger.Warn("failed to issue verification token at registration",
			slog.Int("user_id", created.ID),
			slog.Any("error", err))
		token = ""
	}

	s.auditLogger.LogAccountAction("account_registered", created.ID, "", nil)

	return &RegisterResult{User: created, VerificationToken: token}, nil
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token string
	User  *models.User
}

// Login verifies the credentials and returns a session token. The
// bootstrap admin's plaintext credential is migrated to a bcrypt hash on
// its first successful login.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByUsernameOrEmail(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The verified gate comes before the password compare, so an
	// unverified account always gets the resend affordance and a failed
	// login never reveals whether the password was right.
	if !user.EmailVerified {
		s.logger.Info("login blocked: email not verified", slog.Int("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, &models.EmailNotVerifiedError{UserID: user.ID}
	}

	if pkgauth.IsHashed(user.PasswordHash) {
		err = pkgauth.ComparePassword(user.PasswordHash, password)
	} else {
		// Legacy plaintext credential from seeding.
		if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(password)) == 1 {
			err = nil
			s.migratePlaintextPassword(ctx, user, password)
		} else {
			err = models.ErrUnauthorized
		}
	}
	if err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.logger.Error("failed to issue session token",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return &LoginResult{Token: token, User: user}, nil
}

// migratePlaintextPassword rehashes a legacy plaintext credential after
// it authenticated successfully. Failure is logged, not surfaced; the
// next login retries the migration.
func (s *AccountService) migratePlaintextPassword(ctx context.Context, user *models.User, password string) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash migrated password",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return
	}

	if err := s.repo.SetPassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("failed to persist migrated password",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return
	}

	user.PasswordHash = hash
	s.logger.Info("migrated plaintext credential to bcrypt hash",
		slog.Int("user_id", user.ID))
}

// VerifyEmail consumes a verification token and marks the user verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.verification.Consume(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Account deleted between issuance and verification.
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user for verification",
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.EmailVerified {
		user.EmailVerified = true
		if _, err := s.repo.Update(ctx, user.ID, user); err != nil {
			s.logger.Error("failed to mark email verified",
				slog.Int("user_id", user.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	s.logger.Info("email verified", slog.Int("user_id", user.ID))
	s.auditLogger.LogAccountAction("email_verified", user.ID, "", nil)

	return user, nil
}

// ResendVerification issues a fresh verification token for an
// unverified account. The key may be a username or an email address.
// The returned token is only surfaced in development mode.
func (s *AccountService) ResendVerification(ctx context.Context, username string) (string, error) {
	user, err := s.repo.GetByUsernameOrEmail(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		s.logger.Error("failed to look up user for resend", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if user.EmailVerified {
		return "", models.ErrAlreadyVerified
	}

	token, err := s.verification.Issue(ctx, user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to reissue verification token",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return token, nil
}

// ForgotPassword issues a reset code and sends it to the user's mobile.
// The returned code is only surfaced in development mode.
func (s *AccountService) ForgotPassword(ctx context.Context, username string) (string, error) {
	user, err := s.repo.GetByUsernameOrEmail(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if user.Mobile == "" {
		return "", models.ErrNoMobile
	}

	code, err := s.otp.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to issue otp",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.sms.SendOTP(ctx, user.Mobile, code, time.Now().Add(10*time.Minute)); err != nil {
		// The code is live; delivery is best effort in development.
		s.logger.Warn("failed to deliver otp",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction("password_reset_requested", user.ID, "", nil)

	return code, nil
}

// VerifyOTP checks a reset code without consuming it, returning the
// user id the reset will apply to.
func (s *AccountService) VerifyOTP(ctx context.Context, username, code string) (int, error) {
	user, err := s.repo.GetByUsernameOrEmail(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		s.logger.Error("failed to look up user for otp check", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	if err := s.otp.Verify(ctx, user.ID, code); err != nil {
		return 0, err
	}

	return user.ID, nil
}

// ResetPassword sets a new password after consuming a verified reset code.
func (s *AccountService) ResetPassword(ctx context.Context, username, code, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.repo.GetByUsernameOrEmail(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.otp.ConsumeForReset(ctx, user.ID, code); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.SetPassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("failed to persist new password",
			slog.Int("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.Int("user_id", user.ID))
	s.auditLogger.LogPasswordChange(user.ID, "", true)

	return nil
}

// normalizeMobile strips interior whitespace so equal numbers entered
// with different spacing collide on the uniqueness check.
func normalizeMobile(mobile string) string {
	return strings.ReplaceAll(strings.TrimSpace(mobile), " ", "")
}

func isDuplicateErr(err error) bool {
	return errors.Is(err, models.ErrDuplicateUsername) ||
		errors.Is(err, models.ErrDuplicateEmail) ||
		errors.Is(err, models.ErrDuplicateMobile) ||
		errors.Is(err, models.ErrConflict)
}
