package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/lifedash-auth/internal/auth"
	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/event"
	"github.com/utafrali/lifedash-auth/internal/repository"
	apperrors "github.com/utafrali/lifedash-auth/pkg/errors"
	"github.com/utafrali/lifedash-auth/pkg/middleware"
	"github.com/utafrali/lifedash-auth/pkg/validator"
)

// Options tune registration behaviour.
type Options struct {
	// AdminEmails receive the admin role when they register.
	AdminEmails []string
	// AutoLogin makes Register issue a token for the new account.
	AutoLogin bool
}

// UserService implements registration, login and identity lookups.
type UserService struct {
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	tokens  *auth.JWTManager
	events  event.Publisher
	metrics *Metrics
	logger  *slog.Logger

	admins    map[string]struct{}
	autoLogin bool
}

// NewUserService creates a user service. events and metrics may be nil.
func NewUserService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.JWTManager,
	events event.Publisher,
	metrics *Metrics,
	logger *slog.Logger,
	opts Options,
) *UserService {
	if events == nil {
		events = event.NopPublisher{}
	}
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = domain.NormalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		admins:    admins,
		autoLogin: opts.AutoLogin,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128,password"`
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	ClientIP string `json:"-"`
}

// AuthResult is the outcome of a successful register or login. Token is
// empty when registration does not log the user in.
type AuthResult struct {
	User  *domain.User
	Token string
}

// Register validates the input, hashes the password and stores a new user.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	if err := validator.Validate(input); err != nil {
		s.metrics.registration(ResultInvalid)
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.metrics.registration(ResultError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         s.roleFor(input.Email),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.metrics.registration(ResultDuplicate)
			return nil, err
		}
		s.metrics.registration(ResultError)
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.metrics.registration(ResultSuccess)

	result := &AuthResult{User: user}
	if s.autoLogin {
		token, err := s.tokens.Issue(user)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		result.Token = token
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user_registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return result, nil
}

// Login checks the credentials and issues a token. An unknown email and a
// wrong password produce the same error and cost the same hashing work.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	if err := validator.Validate(input); err != nil {
		s.metrics.login(ResultInvalid)
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.hasher.VerifyDummy(input.Password)
			s.metrics.login(ResultFailure)
			return nil, apperrors.InvalidCredentials()
		}
		s.metrics.login(ResultError)
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, input.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash is unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if !ok {
		s.metrics.login(ResultFailure)
		return nil, apperrors.InvalidCredentials()
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, input.Password)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.metrics.login(ResultError)
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.login(ResultSuccess)

	if err := s.events.PublishUserLoggedIn(ctx, user, input.ClientIP); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user_logged_in event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// GetCurrentUser returns the user behind an authenticated request.
func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// ListUsers returns every registered user.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// VerifyToken is the middleware.TokenValidator backed by the JWT manager.
func (s *UserService) VerifyToken(ctx context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			s.metrics.verification(ResultExpired)
		} else {
			s.metrics.verification(ResultInvalid)
		}
		return nil, err
	}
	s.metrics.verification(ResultValid)
	return &middleware.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

func (s *UserService) roleFor(email string) string {
	if _, ok := s.admins[email]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

// rehash upgrades a legacy or outdated hash after a successful login.
// Failures are logged; the login itself still succeeds.
func (s *UserService) rehash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	user.PasswordHash = hash
	s.logger.InfoContext(ctx, "password hash upgraded", slog.String("user_id", user.ID))
}
