package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/service"
	"github.com/utafrali/lifedash-auth/pkg/httputil"
	"github.com/utafrali/lifedash-auth/pkg/middleware"
	"github.com/utafrali/lifedash-auth/pkg/validator"
)

// Success messages.
const (
	MsgRegistered = "User registered successfully"
	MsgLoggedIn   = "Login successful"
	MsgLoggedOut  = "Logged out successfully"
)

// AuthHandler handles HTTP requests for the credential endpoints.
type AuthHandler struct {
	service    *service.UserService
	logger     *slog.Logger
	trustProxy bool
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.UserService, logger *slog.Logger, trustProxy bool) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger, trustProxy: trustProxy}
}

// --- Request DTOs ---

// CredentialsRequest is the JSON body of register and login. Format and
// password policy are checked by the service after the email is normalized.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// --- Response types ---

// AuthData is returned by register and login. Token is omitted when
// registration does not log the user in.
type AuthData struct {
	User  domain.PublicUser `json:"user"`
	Token string            `json:"token,omitempty"`
}

// --- Handlers ---

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, MsgRegistered, AuthData{
		User:  res.User.Public(),
		Token: res.Token,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r, h.trustProxy),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, MsgLoggedIn, AuthData{
		User:  res.User.Public(),
		Token: res.Token,
	})
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client
// discarding its token is the whole of logging out.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, MsgLoggedOut, nil)
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}
