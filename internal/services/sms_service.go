package services

import (
	"context"
	"log/slog"
	"time"
)

// SMSService defines the interface for delivering one-time codes to a
// user's mobile number.
type SMSService interface {
	SendOTP(ctx context.Context, mobile, code string, expiresAt time.Time) error
}

// LogSMSService writes the code to the log instead of sending a message.
// No SMS provider is integrated; in development the code is also echoed
// in the API response.
type LogSMSService struct {
	logger *slog.Logger
}

func NewLogSMSService(logger *slog.Logger) *LogSMSService {
	return &LogSMSService{logger: logger}
}

func (s *LogSMSService) SendOTP(ctx context.Context, mobile, code string, expiresAt time.Time) error {
	s.logger.Info("password reset code (log delivery)",
		slog.String("mobile", mobile),
		slog.String("otp", code),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}
