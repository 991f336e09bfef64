package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/libshelf/accounts/internal/models"
	"github.com/libshelf/accounts/pkg/logger"
)

// VerificationStore defines the interface for live email-verification
// record storage
type VerificationStore interface {
	Save(ctx context.Context, rec *models.EmailVerificationRecord) error
	GetByToken(ctx context.Context, token string) (*models.EmailVerificationRecord, error)
	Delete(ctx context.Context, userID int) error
	DeleteExpired(ctx context.Context) (int, error)
}

// EmailVerificationService handles email verification business logic
type EmailVerificationService struct {
	store        VerificationStore
	emailService EmailService
	logger       *slog.Logger
	tokenExpiry  time.Duration
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	store VerificationStore,
	emailService EmailService,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		store:        store,
		emailService: emailService,
		logger:       logger,
		tokenExpiry:  tokenExpiry,
	}
}

// Issue generates a fresh verification token for the user, replacing any
// live one, and sends the verification email. The token is returned so
// development mode can echo it in the API response.
func (s *EmailVerificationService) Issue(ctx context.Context, userID int, email string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	rec := &models.EmailVerificationRecord{
		UserID:    userID,
		Email:     email,
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenExpiry),
		CreatedAt: time.Now(),
	}

	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("failed to store verification record",
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return "", fmt.Errorf("failed to store verification record: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, token, rec.ExpiresAt); err != nil {
		s.logger.Error("failed to send verification email",
			slog.Int("user_id", userID),
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification token issued",
		slog.Int("user_id", userID),
		slog.String("email", logger.SanitizedEmail(email)))

	return token, nil
}

// Consume resolves a token to its user id and deletes the record, so a
// token verifies exactly once. An expired record is deleted on detection.
func (s *EmailVerificationService) Consume(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, models.ErrNotFound
	}

	rec, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return 0, err
	}

	if rec.IsExpired() {
		if err := s.store.Delete(ctx, rec.UserID); err != nil {
			s.logger.Error("failed to delete expired verification record",
				slog.Int("user_id", rec.UserID),
				slog.Any("error", err))
		}
		return 0, models.ErrTokenExpired
	}

	if err := s.store.Delete(ctx, rec.UserID); err != nil {
		s.logger.Error("failed to consume verification record",
			slog.Int("user_id", rec.UserID),
			slog.Any("error", err))
		return 0, fmt.Errorf("failed to consume verification record: %w", err)
	}

	s.logger.Info("verification token consumed", slog.Int("user_id", rec.UserID))
	return rec.UserID, nil
}

// CleanupExpired purges expired records from the store. Called by the
// background cleanup manager.
func (s *EmailVerificationService) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired verification records: %w", err)
	}
	return removed, nil
}
