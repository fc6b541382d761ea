package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/ms-auth/internal/httputil"
	"github.com/redmonkez12/ms-auth/internal/logging"
)

const requestKeyPrefix = "ratelimit:"

// Limiter is a fixed-window request counter keyed by client IP.
type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

// NewLimiter allows limit requests per window. A limit of zero disables it.
func NewLimiter(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow counts one request for key. When the window is exhausted it reports
// how long until the counter resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}

	redisKey := requestKeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.PTTL(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("failed to count request: %w", err)
	}

	if incr.Val() <= int64(l.limit) {
		return true, 0, nil
	}

	retryAfter := ttl.Val()
	if retryAfter <= 0 {
		retryAfter = l.window
	}
	return false, retryAfter, nil
}

// Middleware rejects requests over the limit with 429. Redis errors let the
// request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter, err := l.Allow(r.Context(), clientIP(r))
		if err != nil {
			logging.GetLoggerFromContext(r.Context()).Warn("rate limiter unavailable", "error", err)
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			httputil.RespondErrorWithCode(w, "Too many requests, please try again later", httputil.CodeRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. chi's RealIP may already have
// replaced it with a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
