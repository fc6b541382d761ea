package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/ms-auth/internal/httputil"
	"github.com/redmonkez12/ms-auth/internal/logging"
)

// Reset methods accepted by POST /auth/reset-password.
const (
	ResetMethodOTP   = "otp"
	ResetMethodToken = "token"
)

// Outcomes reported to the Recorder.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service *Service
	metrics Recorder
}

// NewHandler returns a Handler. A nil recorder disables metrics.
func NewHandler(service *Service, metrics Recorder) *Handler {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Handler{service: service, metrics: metrics}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Name            string   `json:"name"`
	LastName        string   `json:"lastName"`
	Telephone       string   `json:"telephone"`
	DateOfBirth     string   `json:"dateOfBirth"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirmPassword,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// EmailRequest is the body of logout and forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation. Email and
// OTP are used by method=otp, Token by method=token.
type ResetPasswordRequest struct {
	Email       string `json:"email,omitempty"`
	OTP         string `json:"otp,omitempty"`
	Token       string `json:"token,omitempty"`
	NewPassword string `json:"newPassword"`
}

// UserInfo is the public part of a created account.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	LastName string    `json:"lastName"`
	Email    string    `json:"email"`
}

// SignupResponse represents the signup response
type SignupResponse struct {
	Code     string   `json:"code"`
	UserInfo UserInfo `json:"userInfo"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	AccessToken string    `json:"accessToken"`
}

// ProfileResponse carries the verified session claims.
type ProfileResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// signupCreatedCode marks a successful signup.
const signupCreatedCode = "01"

// Signup handles account creation
// @Summary      Create an account
// @Description  Register a new user with profile fields and a password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup data"
// @Success      201 {object} SignupResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SignupRequest
	if !decodeAndValidate(w, r, logger, &req) {
		h.metrics.ObserveAuth("signup", outcomeRejected)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	// Validate already proved the date parses.
	dob, _ := ParseDateOfBirth(req.DateOfBirth)

	created, err := h.service.Signup(r.Context(), SignupInput{
		Name:        req.Name,
		LastName:    req.LastName,
		Telephone:   req.Telephone,
		DateOfBirth: dob,
		Email:       req.Email,
		Password:    req.Password,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.fail(w, r, logger, "signup", err)
		return
	}

	h.metrics.ObserveAuth("signup", outcomeSuccess)
	logger.Info("user signed up", "user_id", created.ID)

	respondJSON(w, SignupResponse{
		Code: signupCreatedCode,
		UserInfo: UserInfo{
			ID:       created.ID,
			Name:     created.Name,
			LastName: created.LastName,
			Email:    created.Email,
		},
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if !decodeAndValidate(w, r, logger, &req) {
		h.metrics.ObserveAuth("login", outcomeRejected)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, logger, "login", err)
		return
	}

	h.metrics.ObserveAuth("login", outcomeSuccess)
	logger.Info("user logged in", "user_id", session.UserID)

	respondJSON(w, LoginResponse{
		UserID:      session.UserID,
		Username:    session.Username,
		AccessToken: session.AccessToken,
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Clear the stored session of the given account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Account email"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if !decodeAndValidate(w, r, logger, &req) {
		h.metrics.ObserveAuth("logout", outcomeRejected)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.Logout(r.Context(), req.Email); err != nil {
		h.fail(w, r, logger, "logout", err)
		return
	}

	h.metrics.ObserveAuth("logout", outcomeSuccess)
	logger.Info("user logged out")

	httputil.RespondMessage(w, "Cleared & Logout session.")
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Email a 6-digit OTP and a reset link that share one expiry
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Mail delivery failed"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req EmailRequest
	if !decodeAndValidate(w, r, logger, &req) {
		h.metrics.ObserveAuth("forgot_password", outcomeRejected)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, logger, "forgot_password", err)
		return
	}

	h.metrics.ObserveAuth("forgot_password", outcomeSuccess)
	logger.Info("password reset email sent")

	httputil.RespondMessage(w, "Email sent to "+req.Email)
}

// ResetPassword handles password reset with an OTP or a reset token
// @Summary      Reset password
// @Description  Set a new password using the emailed OTP (method=otp) or reset token (method=token)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        method query string true "Reset method" Enums(otp, token)
// @Param        request body ResetPasswordRequest true "Reset secret and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request, OTP or token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many failed OTP attempts"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	method := r.URL.Query().Get("method")
	if method != ResetMethodOTP && method != ResetMethodToken {
		logger.Warn("password reset rejected: unsupported method", "method", method)
		h.metrics.ObserveAuth("reset_password", outcomeRejected)
		respondError(w, "method must be one of: otp, token", httputil.CodeInvalidMethod, http.StatusBadRequest)
		return
	}

	var req ResetPasswordRequest
	if !decodeJSON(w, r, logger, &req) {
		h.metrics.ObserveAuth("reset_password", outcomeRejected)
		return
	}

	secret := req.OTP
	if method == ResetMethodToken {
		secret = req.Token
	}
	if secret == "" || (req.OTP != "" && req.Token != "") {
		logger.Warn("password reset rejected: exactly one secret required", "method", method)
		h.metrics.ObserveAuth("reset_password", outcomeRejected)
		respondError(w, "Exactly one of OTP or token is required", httputil.CodeMissingSecret, http.StatusBadRequest)
		return
	}

	if !checkValid(w, logger, req.Validate(method)) {
		h.metrics.ObserveAuth("reset_password", outcomeRejected)
		return
	}

	var err error
	if method == ResetMethodOTP {
		logger = logger.WithFields(map[string]any{"email": req.Email, "method": method})
		err = h.service.ResetPasswordWithOTP(r.Context(), req.Email, req.OTP, req.NewPassword)
	} else {
		logger = logger.WithFields(map[string]any{"method": method})
		err = h.service.ResetPasswordWithToken(r.Context(), req.Token, req.NewPassword)
	}
	if err != nil {
		h.fail(w, r, logger, "reset_password", err)
		return
	}

	h.metrics.ObserveAuth("reset_password", outcomeSuccess)
	logger.Info("password reset")

	httputil.RespondMessage(w, "Password successfully reseted.")
}

// Profile returns the claims of the presented session token
// @Summary      Current session
// @Description  Return the user id and email bound to the bearer session token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing, invalid or revoked token"
// @Router       /auth/profile [post]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	h.metrics.ObserveAuth("profile", outcomeSuccess)
	respondJSON(w, ProfileResponse{UserID: claims.UserID, Email: claims.Email}, http.StatusOK)
}

// validatable is a request body with its own field rules.
type validatable interface {
	Validate() error
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *logging.Logger, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}
	return true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *logging.Logger, dst validatable) bool {
	if !decodeJSON(w, r, logger, dst) {
		return false
	}
	return checkValid(w, logger, dst.Validate())
}

func checkValid(w http.ResponseWriter, logger *logging.Logger, err error) bool {
	if err == nil {
		return true
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		logger.Warn("request failed validation", "fields", verr.Fields)
		httputil.RespondValidationError(w, ErrValidation.Error(), verr.Fields)
		return false
	}
	respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
	return false
}

// errorMapping is the HTTP rendering of a client-facing error.
type errorMapping struct {
	target error
	status int
	code   string
}

var clientErrors = []errorMapping{
	{ErrDuplicateEmail, http.StatusConflict, httputil.CodeEmailAlreadyExists},
	{ErrInvalidCredentials, http.StatusUnauthorized, httputil.CodeInvalidCredentials},
	{ErrUserNotFound, http.StatusNotFound, httputil.CodeUserNotFound},
	{ErrInvalidOTP, http.StatusBadRequest, httputil.CodeInvalidOTP},
	{ErrOTPExpired, http.StatusBadRequest, httputil.CodeOTPExpired},
	{ErrTooManyAttempts, http.StatusTooManyRequests, httputil.CodeTooManyAttempts},
	{ErrInvalidToken, http.StatusBadRequest, httputil.CodeInvalidToken},
	{ErrTokenExpired, http.StatusBadRequest, httputil.CodeTokenExpired},
}

// fail renders err. Client errors carry their own message; anything else is
// logged in full and answered with an opaque 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, logger *logging.Logger, operation string, err error) {
	for _, m := range clientErrors {
		if errors.Is(err, m.target) {
			h.metrics.ObserveAuth(operation, outcomeRejected)
			logger.Warn(operation+" rejected", "error", err.Error())
			respondError(w, m.target.Error(), m.code, m.status)
			return
		}
	}

	h.metrics.ObserveAuth(operation, outcomeError)
	logger.LogError(r.Context(), operation+" failed", err)

	if errors.Is(err, ErrMailDelivery) {
		respondError(w, "failed to send email, please try again", httputil.CodeMailDelivery, http.StatusInternalServerError)
		return
	}
	respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
