package auth

import (
	"context"
	"time"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain"
)

// UserRepository stores user accounts. Emails are stored lowercased.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update fails with ConcurrentModification on a stale version.
	Update(ctx context.Context, user *User) error
	List(ctx context.Context, filter UserFilter) (domain.ListResult[*User], error)
	Exists(ctx context.Context, email string) (bool, error)
	// CountByRole counts active users with the role; used to bootstrap the
	// first admin.
	CountByRole(ctx context.Context, role Role) (int, error)
}

// TokenRepository stores refresh tokens by their sha256 hash.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error
	// CleanupExpiredTokens deletes tokens expired or revoked before cutoff.
	CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
}
