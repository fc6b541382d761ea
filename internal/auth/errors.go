package auth

import "errors"

// Client-facing failures. Handlers map each to a 4xx status.
var (
	ErrDuplicateEmail     = errors.New("email duplicated, please enter another email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrSessionRevoked     = errors.New("session is no longer active")
	ErrValidation         = errors.New("validation failed")
)

// Internal failures. Handlers answer these with an opaque 500.
var (
	ErrSessionIssuance = errors.New("session issuance failed")
	ErrPersistence     = errors.New("persistence failure")
	ErrMailDelivery    = errors.New("mail delivery failed")
)

// oops codes attached to wrapped internal failures.
const (
	codeSessionIssuance = "AUTH_SESSION_ISSUANCE"
	codePersistence     = "AUTH_PERSISTENCE"
	codeMailDelivery    = "AUTH_MAIL_DELIVERY"
	codeTokenSigning    = "AUTH_TOKEN_SIGNING"
	codeHashing         = "AUTH_HASHING"
	codeOTPGeneration   = "AUTH_OTP_GENERATION"
)
