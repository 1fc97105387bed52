package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/repository"
	"github.com/utafrali/lifedash-auth/pkg/database"
	apperrors "github.com/utafrali/lifedash-auth/pkg/errors"
)

const (
	insertUser = `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	selectUser = `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM users`

	updatePasswordHash = `
		UPDATE users SET password_hash = $1, updated_at = NOW()
		WHERE id = $2`
)

// UserRepository implements repository.UserRepository on PostgreSQL.
type UserRepository struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewUserRepository creates a repository. tracer may be nil.
func NewUserRepository(db database.DBTX, tracer *database.QueryTracer) *UserRepository {
	return &UserRepository{db: db, tracer: tracer}
}

var _ repository.UserRepository = (*UserRepository)(nil)

// Create inserts u. The unique index on email makes the duplicate check atomic.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := r.tracer.Start(ctx, "CreateUser", insertUser)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, insertUser, u.ID, u.Email, u.PasswordHash, u.Role).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists(repository.MsgDuplicateUser)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return nil
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	// The column is a UUID; anything else cannot match and would only
	// produce a cast error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound(repository.MsgUserNotFound)
	}
	return r.getOne(ctx, "GetUserByID", selectUser+" WHERE id = $1", id)
}

// GetByEmail returns the user with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetUserByEmail", selectUser+" WHERE email = $1", email)
}

// List returns all users oldest first.
func (r *UserRepository) List(ctx context.Context) (users []*domain.User, err error) {
	query := selectUser + " ORDER BY created_at, id"
	ctx, end := r.tracer.Start(ctx, "ListUsers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users = make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdatePasswordHash replaces the password hash of user id.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) (err error) {
	ctx, end := r.tracer.Start(ctx, "UpdatePasswordHash", updatePasswordHash)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, updatePasswordHash, hash, id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(repository.MsgUserNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg string) (u *domain.User, err error) {
	ctx, end := r.tracer.Start(ctx, op, query)
	defer func() {
		// A miss is not a query failure.
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	u, err = scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(repository.MsgUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == database.UniqueViolation
}
