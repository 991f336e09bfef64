package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/libshelf/accounts/internal/models"
)

// expiryGrace keeps expired records readable for a short window so
// expiry can be reported distinctly from "no code was ever issued"
// before the TTL garbage-collects the key.
const expiryGrace = 30 * time.Minute

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// otpPayload is the wire shape of an OTP record in Redis.
type otpPayload struct {
	UserID    int       `json:"user_id"`
	Code      string    `json:"code"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// OTPRedisStore keeps live password-reset codes in Redis so multiple
// instances share one view of the reset flow.
type OTPRedisStore struct {
	client *redis.Client
}

func NewOTPRedisStore(client *redis.Client) *OTPRedisStore {
	return &OTPRedisStore{client: client}
}

func otpKey(userID int) string {
	return fmt.Sprintf("otp:%d", userID)
}

func (s *OTPRedisStore) Save(ctx context.Context, rec *models.OTPRecord) error {
	data, err := json.Marshal(otpPayload{
		UserID:    rec.UserID,
		Code:      rec.Code,
		Verified:  rec.Verified,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode otp record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt) + expiryGrace
	if err := s.client.Set(ctx, otpKey(rec.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp record: %w", err)
	}

	return nil
}

func (s *OTPRedisStore) Get(ctx context.Context, userID int) (*models.OTPRecord, error) {
	data, err := s.client.Get(ctx, otpKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to read otp record: %w", err)
	}

	var p otpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode otp record: %w", err)
	}

	return &models.OTPRecord{
		UserID:    p.UserID,
		Code:      p.Code,
		Verified:  p.Verified,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: p.CreatedAt,
	}, nil
}

func (s *OTPRedisStore) Delete(ctx context.Context, userID int) error {
	if err := s.client.Del(ctx, otpKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp record: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis TTLs reclaim expired keys.
func (s *OTPRedisStore) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// verificationPayload is the wire shape of a verification record in Redis.
type verificationPayload struct {
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationRedisStore keeps live email-verification records in Redis.
// Records are written under two keys: by token for lookup on the
// verification link, and by user id so a reissue can invalidate the
// previously issued token.
type VerificationRedisStore struct {
	client *redis.Client
}

func NewVerificationRedisStore(client *redis.Client) *VerificationRedisStore {
	return &VerificationRedisStore{client: client}
}

func verifyTokenKey(token string) string {
	return "verify:token:" + token
}

func verifyUserKey(userID int) string {
	return fmt.Sprintf("verify:user:%d", userID)
}

func (s *VerificationRedisStore) Save(ctx context.Context, rec *models.EmailVerificationRecord) error {
	data, err := json.Marshal(verificationPayload{
		UserID:    rec.UserID,
		Email:     rec.Email,
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode verification record: %w", err)
	}

	// Invalidate the token issued by any prior Save for this user.
	oldToken, err := s.client.Get(ctx, verifyUserKey(rec.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read prior verification token: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt) + expiryGrace

	pipe := s.client.Pipeline()
	if oldToken != "" {
		pipe.Del(ctx, verifyTokenKey(oldToken))
	}
	pipe.Set(ctx, verifyTokenKey(rec.Token), data, ttl)
	pipe.Set(ctx, verifyUserKey(rec.UserID), rec.Token, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store verification record: %w", err)
	}

	return nil
}

func (s *VerificationRedisStore) GetByToken(ctx context.Context, token string) (*models.EmailVerificationRecord, error) {
	data, err := s.client.Get(ctx, verifyTokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read verification record: %w", err)
	}

	var p verificationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode verification record: %w", err)
	}

	return &models.EmailVerificationRecord{
		UserID:    p.UserID,
		Email:     p.Email,
		Token:     p.Token,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: p.CreatedAt,
	}, nil
}

func (s *VerificationRedisStore) Delete(ctx context.Context, userID int) error {
	token, err := s.client.Get(ctx, verifyUserKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read verification token: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, verifyTokenKey(token))
	pipe.Del(ctx, verifyUserKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete verification record: %w", err)
	}

	return nil
}

// DeleteExpired is a no-op: Redis TTLs reclaim expired keys.
func (s *VerificationRedisStore) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
