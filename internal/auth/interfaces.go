package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/ms-auth/internal/user"
)

// TokenClaims are the verified contents of a session or reset token.
// UserID is empty for reset tokens, which bind only the email.
type TokenClaims struct {
	UserID    string    `json:"sub,omitempty"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
// Each instance is bound to a single key.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// UserRepository is the credential store used by the service.
type UserRepository interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateSession(ctx context.Context, id uuid.UUID, s user.Session) error
	UpdateReset(ctx context.Context, id uuid.UUID, r user.Reset) error
	CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EmailService delivers password reset notifications.
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, otp, token string, validFor time.Duration) error
}

// AttemptTracker counts failed OTP guesses per email.
type AttemptTracker interface {
	Failures(ctx context.Context, key string) (int, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Clear(ctx context.Context, key string) error
}

// Recorder observes the outcome of each auth operation.
type Recorder interface {
	ObserveAuth(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveAuth(string, string) {}
