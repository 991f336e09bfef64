package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/libshelf/accounts/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByUsernameOrEmail(ctx context.Context, key string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByMobile(ctx context.Context, mobile string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id int, user *models.User) (*models.User, error)
	SetPassword(ctx context.Context, id int, hash string) error
	Delete(ctx context.Context, id int) error
}

// UserService handles user business logic
type UserService struct {
	repo         UserRepository
	verification VerificationManager
	logger       *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, verification VerificationManager, logger *slog.Logger) *UserService {
	return &UserService{
		repo:         repo,
		verification: verification,
		logger:       logger,
	}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.Int("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// ListUsers retrieves all users
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return users, nil
}

// UpdateUserInput carries the optional profile fields of an update.
// Nil pointers leave the stored value untouched.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Mobile   *string
	Name     *string
	Avatar   *string
}

// UpdateUser applies a partial profile update. Changing the email
// address clears the verified flag and starts a fresh verification
// flow for the new address.
func (s *UserService) UpdateUser(ctx context.Context, id int, input UpdateUserInput) (*models.User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.Int("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	emailChanged := false
	if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
		existing.Username = strings.TrimSpace(*input.Username)
	}
	if input.Email != nil && strings.TrimSpace(*input.Email) != "" {
		newEmail := strings.TrimSpace(*input.Email)
		if !strings.EqualFold(newEmail, existing.Email) {
			existing.Email = newEmail
			existing.EmailVerified = false
			emailChanged = true
		}
	}
	if input.Mobile != nil {
		existing.Mobile = normalizeMobile(*input.Mobile)
	}
	if input.Name != nil {
		existing.Name = strings.TrimSpace(*input.Name)
	}
	if input.Avatar != nil {
		existing.Avatar = *input.Avatar
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		if isDuplicateErr(err) {
			return nil, err
		}
		s.logger.Error("failed to update user", slog.Int("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if emailChanged {
		if _, err := s.verification.Issue(ctx, updated.ID, updated.Email); err != nil {
			s.logger.Warn("failed to issue verification for changed email",
				slog.Int("user_id", updated.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("user updated", slog.Int("user_id", id))
	return updated, nil
}

// DeleteUser deletes a user
func (s *UserService) DeleteUser(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.Int("user_id", id))
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.Int("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user deleted", slog.Int("user_id", id))
	return nil
}
