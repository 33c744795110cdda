// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
	"sitetrack/internal/domain/auth"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const userColumns = `id, email, password_hash, full_name, role, is_active,
	last_login_at, failed_login_attempts, locked_until, version, created_at, updated_at`

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txManager *postgres.TxManager
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *postgres.TxManager) *UserRepo {
	return &UserRepo{txManager: txManager}
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.txManager.GetQuerier(ctx)

	query := `
		INSERT INTO users (
			id, email, password_hash, full_name, role,
			is_active, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Role,
		user.IsActive, user.Version, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("user", "email", user.Email)
		}
		return postgres.MapError(fmt.Errorf("insert user: %w", err), "user")
	}

	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any, key string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	var user auth.User
	err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &user, query, arg)
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("user", key)
	}
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("query user: %w", err), "user")
	}

	return &user, nil
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, "id = $1", userID, userID.String())
}

// GetByEmail retrieves user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "email = $1", email, email)
}

// Update updates user data.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	q := r.txManager.GetQuerier(ctx)

	query := `
		UPDATE users SET
			full_name = $2,
			role = $3,
			is_active = $4,
			last_login_at = $5,
			failed_login_attempts = $6,
			locked_until = $7,
			password_hash = $8,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $1 AND version = $9
	`

	result, err := q.Exec(ctx, query,
		user.ID, user.FullName, user.Role, user.IsActive, user.LastLoginAt,
		user.FailedLoginAttempts, user.LockedUntil, user.PasswordHash,
		user.Version,
	)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update user: %w", err), "user")
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("user", user.ID)
	}

	user.Version++
	return nil
}

func userListQuery(filter auth.UserFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(userColumns).From("users")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"full_name": pattern},
		})
	}
	if filter.Role != "" {
		q = q.Where(squirrel.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		q = q.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	return q
}

// List retrieves users with filtering.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) (domain.ListResult[*auth.User], error) {
	result := domain.NewListResult[*auth.User](filter.ListFilter)
	q := r.txManager.GetQuerier(ctx)
	base := userListQuery(filter)

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").FromSelect(base, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count users: %w", err), "user")
	}

	orderBy, err := postgres.ParseOrderBy(filter.OrderBy, "email ASC", "email", "full_name", "role", "created_at", "last_login_at")
	if err != nil {
		return result, err
	}
	base = base.OrderBy(orderBy, "id ASC")
	if filter.Limit > 0 {
		base = base.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		base = base.Offset(uint64(filter.Offset))
	}

	sql, args, err := base.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError(fmt.Errorf("query users: %w", err), "user")
	}

	return result, nil
}

// Exists checks if email is registered.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	q := r.txManager.GetQuerier(ctx)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("check exists: %w", err), "user")
	}

	return exists, nil
}

// CountByRole counts active users with the role.
func (r *UserRepo) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	q := r.txManager.GetQuerier(ctx)

	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1 AND is_active`, role).Scan(&n)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, postgres.MapError(fmt.Errorf("count users by role: %w", err), "user")
	}

	return n, nil
}

var _ auth.UserRepository = (*UserRepo)(nil)
