//go:build integration

package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/redmonkez12/ms-auth/internal/database"
)

func newPostgresRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("ms_auth_test"),
		postgres.WithUsername("auth"),
		postgres.WithPassword("auth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := database.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	db, err := database.Open(connStr, database.PoolOptions{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db)
}

func TestPostgresRepository_DuplicateEmail(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, sampleUser("ada@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestPostgresRepository_ResetGroupRoundTrip(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.UpdateReset(ctx, u.ID, Reset{
		Token:     ptr("reset-token"),
		OTP:       ptr("000731"),
		ExpiresAt: &expires,
	}))

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "000731", *got.Reset.OTP)
	assert.True(t, expires.Equal(*got.Reset.ExpiresAt))

	require.NoError(t, repo.CompletePasswordReset(ctx, u.ID, "new-hash"))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Reset.OTP)
	assert.Nil(t, got.Reset.Token)
	assert.Nil(t, got.Reset.ExpiresAt)
}
