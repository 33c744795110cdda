package auth_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/domain/auth"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const tokensTable = "refresh_tokens"

var tokenColumns = []string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "revoked_reason"}

// TokenRepo implements auth.TokenRepository.
type TokenRepo struct {
	txManager *postgres.TxManager
}

var _ auth.TokenRepository = (*TokenRepo)(nil)

// NewTokenRepo creates a new token repository.
func NewTokenRepo(txManager *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txManager: txManager}
}

func (r *TokenRepo) exec(ctx context.Context, b squirrel.Sqlizer, op string) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("%s: %w", op, err), "refresh_token")
	}
	return tag.RowsAffected(), nil
}

// SaveRefreshToken stores a newly issued token.
func (r *TokenRepo) SaveRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	_, err := r.exec(ctx, insertTokenQuery(token), "save refresh token")
	return err
}

// GetRefreshToken looks a token up by its hash.
func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	sql, args, err := postgres.Builder().
		Select(tokenColumns...).
		From(tokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build token query: %w", err)
	}

	var token auth.RefreshToken
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &token, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("token", "")
		}
		return nil, postgres.MapError(fmt.Errorf("query token: %w", err), "refresh_token")
	}
	return &token, nil
}

// RevokeRefreshToken revokes one token; already revoked tokens keep their
// original reason.
func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	_, err := r.exec(ctx, revokeQuery(squirrel.Eq{"id": tokenID}, reason, time.Now().UTC()), "revoke token")
	return err
}

// RevokeAllUserTokens revokes every live token of a user (logout, password
// change, lockout).
func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	_, err := r.exec(ctx, revokeQuery(squirrel.Eq{"user_id": userID}, reason, time.Now().UTC()), "revoke all tokens")
	return err
}

// CleanupExpiredTokens deletes tokens that expired, or were revoked, before
// cutoff.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, cleanupQuery(cutoff), "cleanup tokens")
}

func insertTokenQuery(t *auth.RefreshToken) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(tokensTable).
		Columns("id", "user_id", "token_hash", "expires_at", "created_at").
		Values(t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
}

func revokeQuery(match squirrel.Eq, reason string, at time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(tokensTable).
		Set("revoked_at", at).
		Set("revoked_reason", reason).
		Where(match).
		Where(squirrel.Eq{"revoked_at": nil})
}

func cleanupQuery(cutoff time.Time) squirrel.DeleteBuilder {
	return postgres.Builder().
		Delete(tokensTable).
		Where(squirrel.Or{
			squirrel.Lt{"expires_at": cutoff},
			squirrel.Lt{"revoked_at": cutoff},
		})
}
