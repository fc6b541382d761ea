package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"

	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"

	CodeInvalidOTP      = "INVALID_OTP"
	CodeOTPExpired      = "OTP_EXPIRED"
	CodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	CodeInvalidMethod   = "INVALID_RESET_METHOD"
	CodeMissingSecret   = "OTP_OR_TOKEN_REQUIRED"

	CodeInvalidToken      = "INVALID_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeMissingAuth       = "MISSING_AUTHENTICATION"
	CodeInvalidAuthHeader = "INVALID_AUTH_HEADER"
	CodeSessionRevoked    = "SESSION_REVOKED"

	CodeMailDelivery = "MAIL_DELIVERY_FAILED"
	CodeRateLimited  = "RATE_LIMITED"
)
