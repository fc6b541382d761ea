package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the row layout of the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Name         string    `bun:"name,notnull"`
	LastName     string    `bun:"last_name,notnull"`
	Telephone    string    `bun:"telephone,notnull"`
	DateOfBirth  time.Time `bun:"date_of_birth,type:date,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Latitude     *float64  `bun:"latitude,type:decimal(10,6)"`
	Longitude    *float64  `bun:"longitude,type:decimal(10,6)"`

	SessionToken     *string    `bun:"session_token"`
	SessionIssuedAt  *time.Time `bun:"session_issued_at"`
	SessionExpiresAt *time.Time `bun:"session_expires_at"`

	ResetToken     *string    `bun:"reset_token"`
	ResetOTP       *string    `bun:"reset_otp"`
	ResetExpiresAt *time.Time `bun:"reset_expires_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
