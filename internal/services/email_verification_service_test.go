package services

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libshelf/accounts/internal/models"
	"github.com/libshelf/accounts/internal/repositories"
)

func newVerificationService(email EmailService) (*EmailVerificationService, *repositories.VerificationMemoryStore) {
	store := repositories.NewVerificationMemoryStore()
	if email == nil {
		email = &MockEmailService{}
	}
	return NewEmailVerificationService(store, email, slog.Default(), 24*time.Hour), store
}

func TestEmailVerificationService_Issue_TokenShape(t *testing.T) {
	var sentTo, sentToken string
	email := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, to, token string, expiresAt time.Time) error {
			sentTo = to
			sentToken = token
			return nil
		},
	}
	svc, _ := newVerificationService(email)

	token, err := svc.Issue(context.Background(), 1, "alice@example.com")

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), token, "32 random bytes hex encoded")
	assert.Equal(t, "alice@example.com", sentTo)
	assert.Equal(t, token, sentToken, "the emailed link carries the issued token")
}

func TestEmailVerificationService_ConsumeIsSingleUse(t *testing.T) {
	svc, _ := newVerificationService(nil)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 7, "bob@example.com")
	require.NoError(t, err)

	userID, err := svc.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 7, userID)

	_, err = svc.Consume(ctx, token)
	assert.ErrorIs(t, err, models.ErrNotFound, "a consumed token never verifies twice")
}

func TestEmailVerificationService_Consume_Expired(t *testing.T) {
	svc, store := newVerificationService(nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.EmailVerificationRecord{
		UserID:    7,
		Email:     "bob@example.com",
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err := svc.Consume(ctx, "stale-token")
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	// Expiry detection removed the record.
	_, err = svc.Consume(ctx, "stale-token")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEmailVerificationService_Consume_EmptyAndUnknown(t *testing.T) {
	svc, _ := newVerificationService(nil)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Consume(ctx, "no-such-token")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEmailVerificationService_ReissueInvalidatesPriorToken(t *testing.T) {
	svc, _ := newVerificationService(nil)
	ctx := context.Background()

	first, err := svc.Issue(ctx, 7, "bob@example.com")
	require.NoError(t, err)

	second, err := svc.Issue(ctx, 7, "bob@example.com")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, first)
	assert.ErrorIs(t, err, models.ErrNotFound, "resend invalidates the previous token")

	userID, err := svc.Consume(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 7, userID)
}

func TestEmailVerificationService_Issue_EmailFailure(t *testing.T) {
	email := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, to, token string, expiresAt time.Time) error {
			return assert.AnError
		},
	}
	svc, _ := newVerificationService(email)

	_, err := svc.Issue(context.Background(), 1, "alice@example.com")
	require.Error(t, err)
}
