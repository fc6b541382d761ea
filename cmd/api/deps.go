package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/ms-auth/internal/auth"
	"github.com/redmonkez12/ms-auth/internal/config"
	"github.com/redmonkez12/ms-auth/internal/database"
	"github.com/redmonkez12/ms-auth/internal/email"
	"github.com/redmonkez12/ms-auth/internal/logging"
	"github.com/redmonkez12/ms-auth/internal/ratelimit"
	"github.com/redmonkez12/ms-auth/internal/user"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

func connectBackoffPolicy() retry.Backoff {
	return retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
}

// initDB opens the connection pool and waits until PostgreSQL answers a ping.
func initDB(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*bun.DB, error) {
	db, err := database.Open(cfg.ConnectionString(), database.PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").Wrap(err)
	}

	err = retry.Do(ctx, connectBackoffPolicy(), func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("database not ready", "host", cfg.Host, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("host", cfg.Host).Wrap(err)
	}

	return db, nil
}

// initRedis creates the client and waits until Redis answers a ping.
func initRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retry.Do(ctx, connectBackoffPolicy(), func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready", "addr", cfg.Address(), "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Address()).Wrap(err)
	}

	return client, nil
}

// newSessionSigner picks the session token format configured by AUTH_TOKEN_TYPE.
func newSessionSigner(cfg config.AuthConfig) (auth.TokenService, error) {
	switch cfg.TokenType {
	case config.TokenTypePaseto:
		return auth.NewPasetoService(cfg.PasetoKey)
	case config.TokenTypeJWT:
		return auth.NewJWTService(cfg.SessionSecret)
	default:
		return nil, fmt.Errorf("unknown token type %q", cfg.TokenType)
	}
}

// app holds the long-lived collaborators shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	db      *bun.DB
	redis   *redis.Client
	service *auth.Service
}

// newApp loads configuration, connects to PostgreSQL and Redis and wires the
// auth service. Close releases the connections.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	db, err := initDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := initRedis(ctx, cfg.Redis, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, redis: redisClient}

	sessions, err := newSessionSigner(cfg.Auth)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize session tokens: %w", err)
	}
	resets, err := auth.NewJWTService(cfg.Reset.TokenSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize reset tokens: %w", err)
	}

	a.service = auth.NewService(
		user.NewRepository(db),
		auth.NewArgon2idHasher(),
		sessions,
		resets,
		email.NewService(cfg.Email),
		ratelimit.NewAttemptTracker(redisClient),
		logger,
		auth.ServiceConfig{
			SessionDuration: cfg.Auth.SessionDuration,
			ResetExpiry:     cfg.Reset.Expiry,
			MailTimeout:     cfg.Email.SendTimeout,
			MaxOTPAttempts:  cfg.Reset.MaxAttempts,
		},
	)

	return a, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
