package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/redmonkez12/ms-auth/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*database.User)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.NewDropTable().Model((*database.User)(nil)).IfExists().Exec(context.Background())
	})

	return NewRepository(db)
}

func sampleUser(email string) NewUser {
	lat, lng := 19.432608, -99.133209
	return NewUser{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		Name:         "Ada",
		LastName:     "Lovelace",
		Telephone:    "5512345678",
		DateOfBirth:  time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC),
		Latitude:     &lat,
		Longitude:    &lng,
	}
}

func ptr[T any](v T) *T { return &v }

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "Ada", byEmail.Name)
	assert.Equal(t, "Lovelace", byEmail.LastName)
	assert.Equal(t, "1990-05-17", byEmail.DateOfBirth.Format("2006-01-02"))
	require.NotNil(t, byEmail.Latitude)
	assert.InDelta(t, 19.432608, *byEmail.Latitude, 1e-6)
	assert.Nil(t, byEmail.Session.Token)
	assert.Nil(t, byEmail.Reset.OTP)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)
}

func TestRepository_GetByEmailIsExactMatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	_, err = repo.GetByEmail(ctx, "ADA@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_NotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdateSession(ctx, uuid.New(), Session{})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Delete(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_UpdateSessionReplacesGroup(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	issued := time.Now().UTC().Truncate(time.Second)
	expires := issued.Add(10 * time.Minute)
	require.NoError(t, repo.UpdateSession(ctx, u.ID, Session{
		Token:     ptr("session-token"),
		IssuedAt:  &issued,
		ExpiresAt: &expires,
	}))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Session.Token)
	assert.Equal(t, "session-token", *got.Session.Token)
	require.NotNil(t, got.Session.ExpiresAt)
	assert.True(t, expires.Equal(*got.Session.ExpiresAt))
	assert.True(t, got.Session.Active(issued))

	require.NoError(t, repo.UpdateSession(ctx, u.ID, Session{}))

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Session.Token)
	assert.Nil(t, got.Session.IssuedAt)
	assert.Nil(t, got.Session.ExpiresAt)
}

func TestRepository_ResetLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	expires := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	require.NoError(t, repo.UpdateReset(ctx, u.ID, Reset{
		Token:     ptr("reset-token"),
		OTP:       ptr("042517"),
		ExpiresAt: &expires,
	}))

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got.Reset.OTP)
	assert.Equal(t, "042517", *got.Reset.OTP)
	assert.Equal(t, "reset-token", *got.Reset.Token)
	assert.True(t, got.Reset.Pending(time.Now()))

	require.NoError(t, repo.CompletePasswordReset(ctx, u.ID, "new-hash"))

	got, err = repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Nil(t, got.Reset.OTP)
	assert.Nil(t, got.Reset.Token)
	assert.Nil(t, got.Reset.ExpiresAt)
}

func TestRepository_UpdatePasswordAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, sampleUser("ada@example.com"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "upgraded-hash"))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "upgraded-hash", got.PasswordHash)

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err = repo.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"users_email_key\""}

	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23502"}))
	assert.False(t, isUniqueViolation(errors.New("duplicate key value violates unique constraint")))
}
