package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/libshelf/accounts/internal/models"
)

// OTPStore defines the interface for live password-reset code storage
type OTPStore interface {
	Save(ctx context.Context, rec *models.OTPRecord) error
	Get(ctx context.Context, userID int) (*models.OTPRecord, error)
	Delete(ctx context.Context, userID int) error
	DeleteExpired(ctx context.Context) (int, error)
}

// OTPService handles issuing and checking password-reset codes
type OTPService struct {
	store     OTPStore
	logger    *slog.Logger
	otpExpiry time.Duration
}

// NewOTPService creates a new OTPService
func NewOTPService(store OTPStore, logger *slog.Logger, otpExpiry time.Duration) *OTPService {
	return &OTPService{
		store:     store,
		logger:    logger,
		otpExpiry: otpExpiry,
	}
}

// generateCode draws a uniform 6-digit code. Sampling [0,1000000) keeps
// every code equally likely, including those with leading zeros.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates a fresh code for the user, replacing any live one.
func (s *OTPService) Issue(ctx context.Context, userID int) (string, error) {
	code, err := generateCode()
	if err != nil {
		s.logger.Error("failed to generate otp code", slog.Any("error", err))
		return "", err
	}

	rec := &models.OTPRecord{
		UserID:    userID,
		Code:      code,
		Verified:  false,
		ExpiresAt: time.Now().Add(s.otpExpiry),
		CreatedAt: time.Now(),
	}

	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("failed to store otp record",
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	s.logger.Info("otp issued",
		slog.Int("user_id", userID),
		slog.Time("expires_at", rec.ExpiresAt))

	return code, nil
}

// Verify checks the submitted code against the live record and marks it
// verified on a match. An expired record is deleted on detection; a
// mismatched code leaves the record in place so the user can retry.
func (s *OTPService) Verify(ctx context.Context, userID int, code string) error {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	if rec.IsExpired() {
		if err := s.store.Delete(ctx, userID); err != nil {
			s.logger.Error("failed to delete expired otp",
				slog.Int("user_id", userID),
				slog.Any("error", err))
		}
		return models.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return models.ErrOTPMismatch
	}

	rec.Verified = true
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("failed to mark otp verified",
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return fmt.Errorf("failed to update otp: %w", err)
	}

	s.logger.Info("otp verified", slog.Int("user_id", userID))
	return nil
}

// ConsumeForReset authorizes a password reset. The code must have been
// verified beforehand and must still match and be unexpired; the record
// is deleted on success so it cannot authorize a second reset.
func (s *OTPService) ConsumeForReset(ctx context.Context, userID int, code string) error {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	if rec.IsExpired() {
		if err := s.store.Delete(ctx, userID); err != nil {
			s.logger.Error("failed to delete expired otp",
				slog.Int("user_id", userID),
				slog.Any("error", err))
		}
		return models.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return models.ErrOTPMismatch
	}

	if !rec.Verified {
		return models.ErrOTPNotVerified
	}

	if err := s.store.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to consume otp",
			slog.Int("user_id", userID),
			slog.Any("error", err))
		return fmt.Errorf("failed to consume otp: %w", err)
	}

	return nil
}

// CleanupExpired purges expired records from the store. Called by the
// background cleanup manager.
func (s *OTPService) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired otps: %w", err)
	}
	return removed, nil
}
