package repository

import (
	"context"

	"github.com/utafrali/lifedash-auth/internal/domain"
)

// Client-facing messages for store failures.
const (
	MsgUserNotFound  = "User not found"
	MsgDuplicateUser = "User with this email already exists"
)

// UserRepository is the credential store. Emails passed in are already normalized.
type UserRepository interface {
	// Create inserts u and fills its timestamps. A taken email yields an
	// apperrors.AlreadyExists error; the check is atomic.
	Create(ctx context.Context, u *domain.User) error

	// GetByID returns apperrors.NotFound when no user has id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail returns apperrors.NotFound when no user has email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]*domain.User, error)

	// UpdatePasswordHash replaces the stored hash of user id.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
