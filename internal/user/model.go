package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account record.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON

	Name        string    `json:"name"`
	LastName    string    `json:"lastName"`
	Telephone   string    `json:"telephone"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`

	Session Session `json:"-"`
	Reset   Reset   `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session holds the most recently issued session token. The three fields
// are always written together.
type Session struct {
	Token     *string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Active reports whether a session token is stored and not yet expired at now.
func (s Session) Active(now time.Time) bool {
	return s.Token != nil && s.ExpiresAt != nil && now.Before(*s.ExpiresAt)
}

// Reset holds the outstanding password-reset secrets. OTP and Token share
// one expiry; consuming either clears the whole group.
type Reset struct {
	Token     *string
	OTP       *string
	ExpiresAt *time.Time
}

// Pending reports whether a reset window is open at now.
func (r Reset) Pending(now time.Time) bool {
	return r.ExpiresAt != nil && now.Before(*r.ExpiresAt)
}

// NewUser carries the profile fields of a signup.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	LastName     string
	Telephone    string
	DateOfBirth  time.Time
	Latitude     *float64
	Longitude    *float64
}
