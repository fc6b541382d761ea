package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/ms-auth/internal/auth"
	httpServer "github.com/redmonkez12/ms-auth/internal/http"
	"github.com/redmonkez12/ms-auth/internal/metrics"
	"github.com/redmonkez12/ms-auth/internal/ratelimit"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_type", cfg.Auth.TokenType,
	)

	m := metrics.New()

	router := httpServer.NewRouter(cfg, httpServer.RouterDeps{
		AuthHandler:    auth.NewHandler(a.service, m),
		AuthMiddleware: auth.NewMiddleware(a.service),
		Logger:         logger,
		Metrics:        m,
		RateLimiter:    ratelimit.NewLimiter(a.redis, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Checks: map[string]httpServer.HealthCheck{
			"database": a.db.PingContext,
			"redis": func(ctx context.Context) error {
				return a.redis.Ping(ctx).Err()
			},
		},
	})

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
