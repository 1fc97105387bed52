// Package memory holds an in-process credential store used when no
// database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/repository"
	apperrors "github.com/utafrali/lifedash-auth/pkg/errors"
)

// UserRepository is a map-backed repository.UserRepository. Records are
// copied on the way in and out so callers never share memory with the store.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty store.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return apperrors.AlreadyExists(repository.MsgDuplicateUser)
	}

	ts := r.now().UTC()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	stored := *u
	r.byID[u.ID] = &stored
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound(repository.MsgUserNotFound)
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.NotFound(repository.MsgUserNotFound)
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *UserRepository) List(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	users := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out := *u
		users = append(users, &out)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return apperrors.NotFound(repository.MsgUserNotFound)
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.now().UTC()
	return nil
}
