package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token types accepted by AUTH_TOKEN_TYPE.
const (
	TokenTypeJWT    = "jwt"
	TokenTypePaseto = "paseto"
)

const devSessionSecret = "super_secret_3000"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Reset     ResetConfig
	Email     EmailConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	MaxOpenConns   int
	MaxIdleConns   int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// TokenType selects the session token format: jwt (HS256) or paseto (v4.local).
	TokenType string
	// SessionSecret signs HS256 session tokens.
	SessionSecret []byte
	// PasetoKey must be 32 bytes when TokenType is paseto.
	PasetoKey       []byte
	SessionDuration time.Duration
}

type ResetConfig struct {
	// TokenSecret signs reset tokens. It is distinct from the session secret.
	TokenSecret []byte
	Expiry      time.Duration
	MaxAttempts int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	// ImplicitTLS dials with TLS from the first byte (port 465) instead of STARTTLS.
	ImplicitTLS    bool
	ResetURL       string
	SendTimeout    time.Duration
	ProductName    string
	SupportAddress string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// RateLimitConfig bounds requests per client IP on /auth. Requests of zero disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")
	defaultSecret := ""
	if env == "dev" {
		defaultSecret = devSessionSecret
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             env,
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "ms_auth"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenType:       strings.ToLower(getEnv("AUTH_TOKEN_TYPE", TokenTypeJWT)),
			SessionSecret:   []byte(getEnv("JWT_SECRET", defaultSecret)),
			PasetoKey:       []byte(getEnv("PASETO_KEY", "")),
			SessionDuration: getMillisEnv("TOKEN_EXPIRATION_MS", 10*time.Minute),
		},
		Reset: ResetConfig{
			TokenSecret: []byte(getEnv("JWT_PASSWORD_VERIFICATION_TOKEN_SECRET", "")),
			Expiry:      getMillisEnv("JWT_PASSWORD_VERIFICATION_TOKEN_EXPIRATION_TIME", 10*time.Minute),
			MaxAttempts: getIntEnv("RESET_MAX_ATTEMPTS", 5),
		},
		Email: EmailConfig{
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnv("SMTP_PORT", "587"),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASS", ""),
			From:           getEnv("EMAIL_FROM", getEnv("SMTP_USER", "")),
			ImplicitTLS:    getBoolEnv("SMTP_IMPLICIT_TLS", false),
			ResetURL:       getEnv("EMAIL_RESET_PASSWORD_URL", "http://localhost:3000/page/email-reset-password"),
			SendTimeout:    getDurationEnv("MAIL_TIMEOUT", 10*time.Second),
			ProductName:    getEnv("EMAIL_PRODUCT_NAME", "ms-auth"),
			SupportAddress: getEnv("EMAIL_SUPPORT_ADDRESS", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 5),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks for missing secrets and inconsistent settings.
func (c *Config) Validate() error {
	var errs []string

	switch c.Auth.TokenType {
	case TokenTypeJWT:
		if len(c.Auth.SessionSecret) == 0 {
			errs = append(errs, "JWT_SECRET is required")
		}
	case TokenTypePaseto:
		if len(c.Auth.PasetoKey) != 32 {
			errs = append(errs, fmt.Sprintf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey)))
		}
	default:
		errs = append(errs, fmt.Sprintf("AUTH_TOKEN_TYPE must be %q or %q, got %q", TokenTypeJWT, TokenTypePaseto, c.Auth.TokenType))
	}

	if len(c.Reset.TokenSecret) == 0 {
		errs = append(errs, "JWT_PASSWORD_VERIFICATION_TOKEN_SECRET is required")
	} else if string(c.Reset.TokenSecret) == string(c.Auth.SessionSecret) {
		errs = append(errs, "JWT_PASSWORD_VERIFICATION_TOKEN_SECRET must differ from JWT_SECRET")
	}

	if c.Auth.SessionDuration <= 0 {
		errs = append(errs, "TOKEN_EXPIRATION_MS must be positive")
	}
	if c.Reset.Expiry <= 0 {
		errs = append(errs, "JWT_PASSWORD_VERIFICATION_TOKEN_EXPIRATION_TIME must be positive")
	}
	if c.Reset.MaxAttempts < 1 {
		errs = append(errs, "RESET_MAX_ATTEMPTS must be at least 1")
	}

	if c.Email.SendTimeout <= 0 {
		errs = append(errs, "MAIL_TIMEOUT must be positive")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.RateLimit.Requests < 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS must not be negative")
	} else if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, "RATE_LIMIT_WINDOW must be positive")
	}

	if _, err := url.ParseRequestURI(c.Email.ResetURL); err != nil {
		errs = append(errs, fmt.Sprintf("EMAIL_RESET_PASSWORD_URL is not a valid URL: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// URL returns the connection settings as a postgres:// URL for golang-migrate.
func (c *DatabaseConfig) URL() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ChannelBinding != "" {
		q.Set("channel_binding", c.ChannelBinding)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return b
}

// getDurationEnv reads a whole number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

// getMillisEnv reads a whole number of milliseconds.
func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return time.Duration(ms) * time.Millisecond
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
