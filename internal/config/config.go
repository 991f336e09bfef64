package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the insecure fallback signing secret used when
// JWT_SECRET is unset. Any non-development deployment must override it.
const DefaultJWTSecret = "your-secret-key"

type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Auth         AuthConfig
	Verification VerificationConfig
	Email        EmailConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BaseURL        string
	AllowedOrigins []string
	TrustedProxies []string
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Backend  string // "file" or "postgres"
	FilePath string // users.json location for the file backend
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	TokenExpiry        time.Duration // session token validity window
	OTPExpiry          time.Duration // password-reset code window
	VerificationExpiry time.Duration // email-verification token window
	CleanupInterval    time.Duration // expired-record purge cadence
}

// VerificationConfig selects where OTP and email-verification records live.
type VerificationConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type EmailConfig struct {
	Provider    string // "log" or "ses"
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		if env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		jwtSecret = DefaultJWTSecret
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "file"),
			FilePath: getEnv("USERS_FILE", "data/users.json"),
			Database: DatabaseConfig{
				Host:              getEnv("DB_HOST", "localhost"),
				Port:              getEnvAsInt("DB_PORT", 5432),
				User:              getEnv("DB_USER", "postgres"),
				Password:          getEnv("DB_PASSWORD", ""),
				Name:              getEnv("DB_NAME", "accounts"),
				SSLMode:           getEnv("DB_SSLMODE", "disable"),
				MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
				MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
				MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
				MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
				HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			},
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			TokenExpiry:        getEnvAsDuration("TOKEN_EXPIRY", 24*time.Hour),
			OTPExpiry:          getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			VerificationExpiry: getEnvAsDuration("VERIFICATION_EXPIRY", 24*time.Hour),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Verification: VerificationConfig{
			Backend:       getEnv("VERIFICATION_BACKEND", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Provider:    getEnv("EMAIL_PROVIDER", "log"),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@library.local"),
		},
	}

	switch cfg.Store.Backend {
	case "file":
		// nothing extra to validate
	case "postgres":
		if cfg.Store.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required for the postgres store backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want \"file\" or \"postgres\")", cfg.Store.Backend)
	}

	switch cfg.Verification.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown VERIFICATION_BACKEND %q (want \"memory\" or \"redis\")", cfg.Verification.Backend)
	}

	switch cfg.Email.Provider {
	case "log", "ses":
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q (want \"log\" or \"ses\")", cfg.Email.Provider)
	}

	if err := validateJWTSecret(cfg.Auth.JWTSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether dev-only behavior (echoing OTPs and
// verification links in responses) is allowed.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// UsingDefaultSecret reports whether the insecure fallback secret is active.
func (c *Config) UsingDefaultSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	if env != "production" {
		return nil
	}

	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production (got %d)", len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example", DefaultJWTSecret,
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		origins := splitAndTrim(getEnv("ALLOWED_ORIGINS", ""))
		if origins == nil {
			return []string{} // fail closed in production
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
