package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/libshelf/accounts/internal/auth"
	"github.com/libshelf/accounts/internal/handlers"
	middlewareCustom "github.com/libshelf/accounts/internal/middleware"
	"github.com/libshelf/accounts/internal/repositories"
	"github.com/libshelf/accounts/internal/routes"
	"github.com/libshelf/accounts/internal/services"
	pkglogger "github.com/libshelf/accounts/pkg/logger"
)

// SentEmail represents a captured verification email
type SentEmail struct {
	To    string
	Token string
}

// CaptureEmailService records verification emails for test assertions
type CaptureEmailService struct {
	mu     sync.Mutex
	Emails []SentEmail
}

func (c *CaptureEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Emails = append(c.Emails, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent captured email
func (c *CaptureEmailService) LastEmail() *SentEmail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Emails) == 0 {
		return nil
	}
	return &c.Emails[len(c.Emails)-1]
}

// SentSMS represents a captured one-time code
type SentSMS struct {
	Mobile string
	Code   string
}

// CaptureSMSService records OTP messages for test assertions
type CaptureSMSService struct {
	mu       sync.Mutex
	Messages []SentSMS
}

func (c *CaptureSMSService) SendOTP(ctx context.Context, mobile, code string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, SentSMS{Mobile: mobile, Code: code})
	return nil
}

// LastSMS returns the most recent captured OTP message
func (c *CaptureSMSService) LastSMS() *SentSMS {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// TestServer wraps httptest.Server with the full production routing
// stack backed by a throwaway file store and in-memory token stores.
type TestServer struct {
	Server       *httptest.Server
	EmailService *CaptureEmailService
	SMSService   *CaptureSMSService
	StorePath    string
}

// NewTestServer spins up the complete HTTP stack the way main does,
// with email and SMS delivery captured instead of sent.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	storePath := filepath.Join(t.TempDir(), "users.json")
	userRepo, err := repositories.NewUserFileRepository(storePath)
	if err != nil {
		t.Fatalf("failed to create user store: %v", err)
	}

	otpStore := repositories.NewOTPMemoryStore()
	verificationStore := repositories.NewVerificationMemoryStore()

	captureEmail := &CaptureEmailService{}
	captureSMS := &CaptureSMSService{}

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing", 24*time.Hour)
	auditLogger := pkglogger.NewAuditLogger(logger)

	verificationService := services.NewEmailVerificationService(verificationStore, captureEmail, logger, 24*time.Hour)
	otpService := services.NewOTPService(otpStore, logger, 10*time.Minute)
	accountService := services.NewAccountService(userRepo, tokenManager, verificationService, otpService, captureSMS, logger, auditLogger)
	userService := services.NewUserService(userRepo, verificationService, logger)

	authHandler := handlers.NewAuthHandler(accountService, "http://localhost:8080", true)
	userHandler := handlers.NewUserHandler(userService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, tokenManager)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:       server,
		EmailService: captureEmail,
		SMSService:   captureSMS,
		StorePath:    storePath,
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts the error message from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["error"].(string); ok {
		return msg, nil
	}
	return "", nil
}
