package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "session-secret")
	t.Setenv("JWT_PASSWORD_VERIFICATION_TOKEN_SECRET", "reset-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, TokenTypeJWT, cfg.Auth.TokenType)
	assert.Equal(t, 10*time.Minute, cfg.Auth.SessionDuration)
	assert.Equal(t, 10*time.Minute, cfg.Reset.Expiry)
	assert.Equal(t, 5, cfg.Reset.MaxAttempts)
	assert.Equal(t, "http://localhost:3000/page/email-reset-password", cfg.Email.ResetURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.TrustedOrigins)
	assert.Equal(t, RateLimitConfig{Requests: 5, Window: time.Minute}, cfg.RateLimit)
}

func TestLoad_DevSessionSecretFallback(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_PASSWORD_VERIFICATION_TOKEN_SECRET", "reset-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []byte(devSessionSecret), cfg.Auth.SessionSecret)
}

func TestLoad_ProdRequiresSessionSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_PASSWORD_VERIFICATION_TOKEN_SECRET", "reset-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoad_MillisecondDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_EXPIRATION_MS", "90000")
	t.Setenv("JWT_PASSWORD_VERIFICATION_TOKEN_EXPIRATION_TIME", "600000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Auth.SessionDuration)
	assert.Equal(t, 10*time.Minute, cfg.Reset.Expiry)
}

func TestLoad_RejectsZeroMailTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAIL_TIMEOUT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_TIMEOUT must be positive")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth: AuthConfig{
				TokenType:       TokenTypeJWT,
				SessionSecret:   []byte("a"),
				SessionDuration: time.Minute,
			},
			Reset: ResetConfig{TokenSecret: []byte("b"), Expiry: time.Minute, MaxAttempts: 3},
			Server: ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second},
			Email:  EmailConfig{ResetURL: "http://localhost/reset", SendTimeout: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "same secrets",
			mutate:  func(c *Config) { c.Reset.TokenSecret = []byte("a") },
			wantErr: "must differ from JWT_SECRET",
		},
		{
			name:    "missing reset secret",
			mutate:  func(c *Config) { c.Reset.TokenSecret = nil },
			wantErr: "JWT_PASSWORD_VERIFICATION_TOKEN_SECRET is required",
		},
		{
			name: "paseto short key",
			mutate: func(c *Config) {
				c.Auth.TokenType = TokenTypePaseto
				c.Auth.PasetoKey = []byte("short")
			},
			wantErr: "PASETO_KEY must be exactly 32 bytes",
		},
		{
			name: "paseto valid key",
			mutate: func(c *Config) {
				c.Auth.TokenType = TokenTypePaseto
				c.Auth.PasetoKey = []byte("0123456789abcdef0123456789abcdef")
			},
		},
		{
			name:    "unknown token type",
			mutate:  func(c *Config) { c.Auth.TokenType = "saml" },
			wantErr: "AUTH_TOKEN_TYPE",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Reset.MaxAttempts = 0 },
			wantErr: "RESET_MAX_ATTEMPTS",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.RateLimit.Requests = -1 },
			wantErr: "RATE_LIMIT_REQUESTS",
		},
		{
			name:    "rate limit without window",
			mutate:  func(c *Config) { c.RateLimit = RateLimitConfig{Requests: 5} },
			wantErr: "RATE_LIMIT_WINDOW",
		},
		{
			name:    "zero mail timeout",
			mutate:  func(c *Config) { c.Email.SendTimeout = 0 },
			wantErr: "MAIL_TIMEOUT must be positive",
		},
		{
			name:    "negative mail timeout",
			mutate:  func(c *Config) { c.Email.SendTimeout = -time.Second },
			wantErr: "MAIL_TIMEOUT must be positive",
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: "SERVER_READ_TIMEOUT must be positive",
		},
		{
			name:    "zero write timeout",
			mutate:  func(c *Config) { c.Server.WriteTimeout = 0 },
			wantErr: "SERVER_WRITE_TIMEOUT must be positive",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "SERVER_SHUTDOWN_TIMEOUT must be positive",
		},
		{
			name:    "bad reset url",
			mutate:  func(c *Config) { c.Email.ResetURL = "not a url" },
			wantErr: "EMAIL_RESET_PASSWORD_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "auth",
		Password: "p@ss",
		DBName:   "ms_auth",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://auth:p%40ss@db:5432/ms_auth?sslmode=disable", c.URL())
	assert.Equal(t, "host=db port=5432 user=auth password=p@ss dbname=ms_auth sslmode=disable", c.ConnectionString())
}

func TestGetSliceEnv(t *testing.T) {
	t.Setenv("TEST_SLICE", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, getSliceEnv("TEST_SLICE", nil))

	t.Setenv("TEST_SLICE", " , ")
	assert.Equal(t, []string{"x"}, getSliceEnv("TEST_SLICE", []string{"x"}))
}
