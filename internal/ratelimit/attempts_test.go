package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient fails every command without waiting on retries.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGetAttemptKey(t *testing.T) {
	assert.Equal(t, "attempts:reset_otp:42", getAttemptKey("reset_otp:42"))
}

func TestRecordFailure_RejectsEmptyWindow(t *testing.T) {
	tracker := NewAttemptTracker(unreachableClient(t))

	_, err := tracker.RecordFailure(context.Background(), "k", 0)
	assert.ErrorContains(t, err, "window must be positive")
}

func TestAttemptTracker_WrapsRedisErrors(t *testing.T) {
	tracker := NewAttemptTracker(unreachableClient(t))
	ctx := context.Background()

	_, err := tracker.Failures(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read attempt counter")

	_, err = tracker.RecordFailure(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record attempt")

	err = tracker.Clear(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear attempt counter")
}
