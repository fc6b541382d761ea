// Package ratelimit counts failed attempts and requests in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attempts:"

// AttemptTracker keeps a per-key failure counter that expires with its window.
type AttemptTracker struct {
	client redis.Cmdable
}

func NewAttemptTracker(client redis.Cmdable) *AttemptTracker {
	return &AttemptTracker{client: client}
}

// getAttemptKey namespaces caller keys.
func getAttemptKey(key string) string {
	return keyPrefix + key
}

// Failures returns the current count for key, zero when none is stored.
func (t *AttemptTracker) Failures(ctx context.Context, key string) (int, error) {
	n, err := t.client.Get(ctx, getAttemptKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read attempt counter: %w", err)
	}
	return n, nil
}

// RecordFailure increments the counter for key and sets its expiry to window.
func (t *AttemptTracker) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, fmt.Errorf("attempt window must be positive, got %s", window)
	}

	attemptKey := getAttemptKey(key)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, attemptKey)
	pipe.Expire(ctx, attemptKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}

	return int(incr.Val()), nil
}

// Clear removes the counter for key.
func (t *AttemptTracker) Clear(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, getAttemptKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear attempt counter: %w", err)
	}
	return nil
}
