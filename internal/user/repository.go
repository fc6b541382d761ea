package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/ms-auth/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts a new user. The id is generated here.
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	now := r.now().UTC()
	dbUser := &database.User{
		ID:           uuid.New(),
		Name:         nu.Name,
		LastName:     nu.LastName,
		Telephone:    nu.Telephone,
		DateOfBirth:  nu.DateOfBirth,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Latitude:     nu.Latitude,
		Longitude:    nu.Longitude,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.db.NewInsert().Model(dbUser).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by exact email match.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateSession replaces the session group in a single statement.
// A zero Session clears it.
func (r *Repository) UpdateSession(ctx context.Context, id uuid.UUID, s Session) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("session_token = ?", s.Token).
		Set("session_issued_at = ?", s.IssuedAt).
		Set("session_expires_at = ?", s.ExpiresAt)

	return r.execUpdate(ctx, q, id, "update session")
}

// UpdateReset replaces the reset group in a single statement.
// A zero Reset clears it.
func (r *Repository) UpdateReset(ctx context.Context, id uuid.UUID, rs Reset) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token = ?", rs.Token).
		Set("reset_otp = ?", rs.OTP).
		Set("reset_expires_at = ?", rs.ExpiresAt)

	return r.execUpdate(ctx, q, id, "update reset state")
}

// CompletePasswordReset stores the new hash and clears the reset group
// in the same statement.
func (r *Repository) CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_otp = NULL").
		Set("reset_expires_at = NULL")

	return r.execUpdate(ctx, q, id, "complete password reset")
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash)

	return r.execUpdate(ctx, q, id, "update password")
}

// Delete removes the user with the given id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return checkAffected(result)
}

func (r *Repository) execUpdate(ctx context.Context, q *bun.UpdateQuery, id uuid.UUID, op string) error {
	result, err := q.
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Email:        dbu.Email,
		PasswordHash: dbu.PasswordHash,
		Name:         dbu.Name,
		LastName:     dbu.LastName,
		Telephone:    dbu.Telephone,
		DateOfBirth:  dbu.DateOfBirth.UTC(),
		Latitude:     dbu.Latitude,
		Longitude:    dbu.Longitude,
		Session: Session{
			Token:     dbu.SessionToken,
			IssuedAt:  dbu.SessionIssuedAt,
			ExpiresAt: dbu.SessionExpiresAt,
		},
		Reset: Reset{
			Token:     dbu.ResetToken,
			OTP:       dbu.ResetOTP,
			ExpiresAt: dbu.ResetExpiresAt,
		},
		CreatedAt: dbu.CreatedAt,
		UpdatedAt: dbu.UpdatedAt,
	}
}
