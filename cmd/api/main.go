package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/libshelf/accounts/internal/auth"
	"github.com/libshelf/accounts/internal/background"
	"github.com/libshelf/accounts/internal/config"
	"github.com/libshelf/accounts/internal/database"
	"github.com/libshelf/accounts/internal/handlers"
	middlewareCustom "github.com/libshelf/accounts/internal/middleware"
	"github.com/libshelf/accounts/internal/repositories"
	"github.com/libshelf/accounts/internal/routes"
	"github.com/libshelf/accounts/internal/services"
	pkghttp "github.com/libshelf/accounts/pkg/http"
	pkglogger "github.com/libshelf/accounts/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("verification_backend", cfg.Verification.Backend))

	if cfg.UsingDefaultSecret() {
		logger.Warn("JWT_SECRET is not set, using the insecure development default")
	}

	// User store
	var userRepo services.UserRepository
	var db *database.DB

	switch cfg.Store.Backend {
	case "postgres":
		db, err = database.NewConnection(&cfg.Store.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate("migrations"); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}

		pgRepo := repositories.NewUserPostgresRepository(db)
		bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pgRepo.EnsureBootstrapAdmin(bootstrapCtx); err != nil {
			cancel()
			logger.Error("failed to seed bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
		cancel()
		userRepo = pgRepo
	default:
		fileRepo, err := repositories.NewUserFileRepository(cfg.Store.FilePath)
		if err != nil {
			logger.Error("failed to open user store", slog.Any("error", err), slog.String("path", cfg.Store.FilePath))
			os.Exit(1)
		}
		userRepo = fileRepo
	}

	// OTP and verification token stores
	var otpStore services.OTPStore
	var verificationStore services.VerificationStore

	if cfg.Verification.Backend == "redis" {
		redisCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := repositories.NewRedisClient(redisCtx, cfg.Verification.RedisAddr, cfg.Verification.RedisPassword, cfg.Verification.RedisDB)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()

		otpStore = repositories.NewOTPRedisStore(redisClient)
		verificationStore = repositories.NewVerificationRedisStore(redisClient)
	} else {
		otpStore = repositories.NewOTPMemoryStore()
		verificationStore = repositories.NewVerificationMemoryStore()
	}

	// Email delivery
	var emailService services.EmailService
	if cfg.Email.Provider == "ses" {
		emailService, err = services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Server.BaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewLogEmailService(cfg.Server.BaseURL, logger)
	}

	smsService := services.NewLogSMSService(logger)

	// Core services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	verificationService := services.NewEmailVerificationService(verificationStore, emailService, logger, cfg.Auth.VerificationExpiry)
	otpService := services.NewOTPService(otpStore, logger, cfg.Auth.OTPExpiry)
	accountService := services.NewAccountService(userRepo, tokenManager, verificationService, otpService, smsService, logger, auditLogger)
	userService := services.NewUserService(userRepo, verificationService, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(accountService, cfg.Server.BaseURL, cfg.IsDevelopment())
	userHandler := handlers.NewUserHandler(userService)

	// Expired OTP and verification records are purged in the background
	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval, otpService, verificationService)

	// CORS
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, userHandler, tokenManager)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
