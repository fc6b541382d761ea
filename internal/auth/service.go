package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/redmonkez12/ms-auth/internal/logging"
	"github.com/redmonkez12/ms-auth/internal/user"
)

// ServiceConfig holds the lifetimes and limits of the auth flows.
type ServiceConfig struct {
	SessionDuration time.Duration
	ResetExpiry     time.Duration
	MailTimeout     time.Duration
	// MaxOTPAttempts is the number of wrong OTP guesses tolerated per reset
	// window. Zero disables the lockout.
	MaxOTPAttempts int
}

// SignupInput is a validated signup with the date of birth already normalised.
type SignupInput struct {
	Name        string
	LastName    string
	Telephone   string
	DateOfBirth time.Time
	Email       string
	Password    string
	Latitude    *float64
	Longitude   *float64
}

// IssuedSession is the result of a successful login.
type IssuedSession struct {
	UserID      uuid.UUID
	Username    string
	AccessToken string
	ExpiresAt   time.Time
}

// Service handles authentication business logic
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions TokenService
	resets   TokenService
	email    EmailService
	attempts AttemptTracker
	logger   *logging.Logger
	cfg      ServiceConfig

	now  func() time.Time
	rand io.Reader
}

// NewService wires the service. sessions and resets must be bound to
// different keys. attempts may be nil, which disables the OTP lockout.
func NewService(
	users UserRepository,
	hasher PasswordHasher,
	sessions TokenService,
	resets TokenService,
	email EmailService,
	attempts AttemptTracker,
	logger *logging.Logger,
	cfg ServiceConfig,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		resets:   resets,
		email:    email,
		attempts: attempts,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		rand:     rand.Reader,
	}
}

func persistenceErr(op string, err error) error {
	return oops.Code(codePersistence).
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
}

// Signup creates a new account after a duplicate-email check.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*user.User, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return nil, persistenceErr("GetByEmail", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code(codeHashing).With("operation", "Hash").Wrap(err)
	}

	created, err := s.users.Create(ctx, user.NewUser{
		Email:        in.Email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(in.Name),
		LastName:     strings.TrimSpace(in.LastName),
		Telephone:    in.Telephone,
		DateOfBirth:  in.DateOfBirth,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
	})
	if err != nil {
		// The unique constraint catches a signup racing past the lookup.
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, persistenceErr("Create", err)
	}

	return created, nil
}

// ValidateCredentials returns the user when password matches. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*user.User, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, persistenceErr("GetByEmail", err)
	}

	targetHash := dummyPasswordHash
	if existing != nil {
		targetHash = existing.PasswordHash
	}

	ok, verr := s.hasher.Verify(password, targetHash)
	if existing == nil {
		return nil, ErrInvalidCredentials
	}
	if verr != nil {
		s.logger.LogError(ctx, "stored password hash is unreadable", oops.With("user_id", existing.ID).Wrap(verr))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(existing.PasswordHash) {
		s.upgradeHash(ctx, existing, password)
	}

	return existing, nil
}

// upgradeHash replaces a legacy hash after a successful login. Failures are
// logged and leave the old hash in place.
func (s *Service) upgradeHash(ctx context.Context, u *user.User, password string) {
	upgraded, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash legacy password", "user_id", u.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, u.ID, upgraded); err != nil {
		s.logger.Warn("failed to store upgraded password hash", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = upgraded
}

// IssueSession signs a session token and persists it as the user's current
// session.
func (s *Service) IssueSession(ctx context.Context, u *user.User) (*IssuedSession, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.cfg.SessionDuration)

	token, err := s.sessions.CreateToken(u.ID, u.Email, s.cfg.SessionDuration)
	if err != nil {
		return nil, oops.Code(codeSessionIssuance).
			With("operation", "CreateToken").
			Wrap(fmt.Errorf("%w: %w", ErrSessionIssuance, err))
	}

	err = s.users.UpdateSession(ctx, u.ID, user.Session{
		Token:     &token,
		IssuedAt:  &issuedAt,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return nil, oops.Code(codeSessionIssuance).
			With("operation", "UpdateSession").
			With("user_id", u.ID).
			Wrap(fmt.Errorf("%w: %w", ErrSessionIssuance, err))
	}

	return &IssuedSession{
		UserID:      u.ID,
		Username:    usernameFromEmail(u.Email),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Login validates credentials and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*IssuedSession, error) {
	u, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.IssueSession(ctx, u)
}

// Logout clears the stored session. It succeeds when no session exists.
func (s *Service) Logout(ctx context.Context, email string) error {
	u, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.users.UpdateSession(ctx, u.ID, user.Session{}); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return persistenceErr("UpdateSession", err)
	}
	return nil
}

// Authenticate verifies a bearer session token and requires it to be the
// user's current stored session.
func (s *Service) Authenticate(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.sessions.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, persistenceErr("GetByID", err)
	}

	if !secretsEqual(u.Session.Token, token) || !u.Session.Active(s.now()) {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// ForgotPassword opens a reset window: a fresh OTP and reset token sharing
// one expiry are stored and mailed. If delivery fails the stored reset state
// is cleared again.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	otp, err := generateOTP(s.rand)
	if err != nil {
		return oops.Code(codeOTPGeneration).Wrap(err)
	}

	token, err := s.resets.CreateToken(uuid.Nil, u.Email, s.cfg.ResetExpiry)
	if err != nil {
		return oops.Code(codeTokenSigning).With("operation", "CreateToken").Wrap(err)
	}

	expiresAt := s.now().UTC().Add(s.cfg.ResetExpiry)
	if err := s.users.UpdateReset(ctx, u.ID, user.Reset{
		Token:     &token,
		OTP:       &otp,
		ExpiresAt: &expiresAt,
	}); err != nil {
		return persistenceErr("UpdateReset", err)
	}

	s.clearAttempts(ctx, u.ID)

	mailCtx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()

	if err := s.email.SendPasswordResetEmail(mailCtx, u.Email, otp, token, s.cfg.ResetExpiry); err != nil {
		if cerr := s.users.UpdateReset(context.WithoutCancel(ctx), u.ID, user.Reset{}); cerr != nil {
			s.logger.LogError(ctx, "failed to clear reset state after mail failure", persistenceErr("UpdateReset", cerr))
		}
		return oops.Code(codeMailDelivery).
			With("timeout", errors.Is(err, context.DeadlineExceeded)).
			Wrap(fmt.Errorf("%w: %w", ErrMailDelivery, err))
	}

	return nil
}

// ResetPasswordWithOTP consumes the OTP of the open reset window.
func (s *Service) ResetPasswordWithOTP(ctx context.Context, email, otp, newPassword string) error {
	u, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkAttempts(ctx, u.ID); err != nil {
		return err
	}

	if !secretsEqual(u.Reset.OTP, otp) {
		s.recordFailure(ctx, u)
		return ErrInvalidOTP
	}
	if !u.Reset.Pending(s.now()) {
		return ErrOTPExpired
	}

	return s.completeReset(ctx, u, newPassword)
}

// ResetPasswordWithToken consumes the reset token of the open reset window.
// Tokens from an earlier window are rejected.
func (s *Service) ResetPasswordWithToken(ctx context.Context, token, newPassword string) error {
	claims, err := s.resets.VerifyToken(token)
	if err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidToken
		}
		return persistenceErr("GetByEmail", err)
	}

	if !secretsEqual(u.Reset.Token, token) {
		return ErrInvalidToken
	}
	if !u.Reset.Pending(s.now()) {
		return ErrTokenExpired
	}

	return s.completeReset(ctx, u, newPassword)
}

// RemoveUser deletes the account registered under email.
func (s *Service) RemoveUser(ctx context.Context, email string) error {
	u, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, u.ID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return persistenceErr("Delete", err)
	}

	s.clearAttempts(ctx, u.ID)
	return nil
}

func (s *Service) completeReset(ctx context.Context, u *user.User, newPassword string) error {
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(codeHashing).With("operation", "Hash").Wrap(err)
	}

	if err := s.users.CompletePasswordReset(ctx, u.ID, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return persistenceErr("CompletePasswordReset", err)
	}

	s.clearAttempts(ctx, u.ID)
	return nil
}

func (s *Service) lookupByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceErr("GetByEmail", err)
	}
	return u, nil
}

func attemptKey(id uuid.UUID) string {
	return "reset_otp:" + id.String()
}

// checkAttempts fails closed only on a known lockout. Tracker outages are
// logged and the attempt proceeds.
func (s *Service) checkAttempts(ctx context.Context, id uuid.UUID) error {
	if s.attempts == nil || s.cfg.MaxOTPAttempts <= 0 {
		return nil
	}
	n, err := s.attempts.Failures(ctx, attemptKey(id))
	if err != nil {
		s.logger.Warn("failed to read otp attempt counter", "user_id", id, "error", err)
		return nil
	}
	if n >= s.cfg.MaxOTPAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, u *user.User) {
	if s.attempts == nil || s.cfg.MaxOTPAttempts <= 0 {
		return
	}

	window := s.cfg.ResetExpiry
	if u.Reset.ExpiresAt != nil {
		if remaining := u.Reset.ExpiresAt.Sub(s.now()); remaining > 0 {
			window = remaining
		}
	}

	if _, err := s.attempts.RecordFailure(ctx, attemptKey(u.ID), window); err != nil {
		s.logger.Warn("failed to record otp failure", "user_id", u.ID, "error", err)
	}
}

func (s *Service) clearAttempts(ctx context.Context, id uuid.UUID) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Clear(ctx, attemptKey(id)); err != nil {
		s.logger.Warn("failed to clear otp attempt counter", "user_id", id, "error", err)
	}
}

// usernameFromEmail returns the part of email before the first '@'.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
