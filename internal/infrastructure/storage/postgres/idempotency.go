package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"sitetrack/internal/core/apperror"
)

const idempotencyTable = "idempotency_keys"

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// staleAfter is how long a pending key may sit before another request can
// take it over (the first one most likely crashed).
const staleAfter = time.Minute

// IdempotencyRequest identifies a request guarded by an idempotency key.
type IdempotencyRequest struct {
	Key         string
	UserID      string
	Operation   string
	RequestHash string
}

type idempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	RequestHash string            `db:"request_hash"`
	Status      IdempotencyStatus `db:"status"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is the stored HTTP response of a finished request.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps the outcome of stock-mutating requests so a retried
// request (same key) replays the first response instead of running twice.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

func acquireQuery(req IdempotencyRequest, now, expiresAt time.Time) squirrel.InsertBuilder {
	return Builder().
		Insert(idempotencyTable).
		Columns("idempotency_key", "user_id", "operation", "request_hash", "status", "created_at", "updated_at", "expires_at").
		Values(req.Key, req.UserID, req.Operation, req.RequestHash, IdempotencyStatusPending, now, now, expiresAt).
		Suffix("ON CONFLICT (idempotency_key) DO NOTHING RETURNING idempotency_key")
}

// Acquire claims the key for req. It returns:
//   - (nil, nil) when the caller owns the key and must run the request
//   - (replay, nil) when the request already finished
//   - (nil, error) when the key is in flight or was used for another request
func (s *IdempotencyStore) Acquire(ctx context.Context, req IdempotencyRequest) (*IdempotencyReplay, error) {
	now := s.now().UTC()
	q := s.txManager.GetQuerier(ctx)

	sql, args, err := acquireQuery(req, now, now.Add(s.ttl)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build acquire query: %w", err)
	}
	var inserted string
	err = q.QueryRow(ctx, sql, args...).Scan(&inserted)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	rec, err := s.get(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, req, rec, now)
}

func (s *IdempotencyStore) get(ctx context.Context, key string) (*idempotencyRecord, error) {
	sql, args, err := Builder().
		Select("idempotency_key", "user_id", "operation", "request_hash", "status",
			"response", "response_status", "response_content_type", "updated_at", "expires_at").
		From(idempotencyTable).
		Where(squirrel.Eq{"idempotency_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rec idempotencyRecord
	if err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	return &rec, nil
}

// resolve decides what to do with a key that already exists.
func (s *IdempotencyStore) resolve(ctx context.Context, req IdempotencyRequest, rec *idempotencyRecord, now time.Time) (*IdempotencyReplay, error) {
	expired := now.After(rec.ExpiresAt)
	stale := rec.Status == IdempotencyStatusPending && now.Sub(rec.UpdatedAt) > staleAfter

	if expired || stale {
		if err := s.takeOver(ctx, req, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("operation", rec.Operation)
	}

	if rec.Status == IdempotencyStatusPending {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}

	replay := &IdempotencyReplay{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Response,
	}
	if replay.StatusCode == 0 {
		replay.StatusCode = 200
	}
	if replay.ContentType == "" {
		replay.ContentType = "application/json"
	}
	return replay, nil
}

func (s *IdempotencyStore) takeOver(ctx context.Context, req IdempotencyRequest, now time.Time) error {
	sql, args, err := Builder().
		Update(idempotencyTable).
		SetMap(map[string]any{
			"user_id":               req.UserID,
			"operation":             req.Operation,
			"request_hash":          req.RequestHash,
			"status":                IdempotencyStatusPending,
			"response":              nil,
			"response_status":       0,
			"response_content_type": "",
			"updated_at":            now,
			"expires_at":            now.Add(s.ttl),
		}).
		Where(squirrel.Eq{"idempotency_key": req.Key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build takeover: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("take over idempotency key: %w", err)
	}
	return nil
}

// Complete stores the final response of the request owning key. Responses
// with status >= 400 are stored as failed and still replayed.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	status := IdempotencyStatusSuccess
	if statusCode >= 400 {
		status = IdempotencyStatusFailed
	}

	sql, args, err := Builder().
		Update(idempotencyTable).
		Set("status", status).
		Set("response", body).
		Set("response_status", statusCode).
		Set("response_content_type", contentType).
		Set("updated_at", s.now().UTC()).
		Where(squirrel.Eq{"idempotency_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets a pending key so the request can be retried. Used when
// the request failed for reasons a retry may fix (5xx).
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	sql, args, err := Builder().
		Delete(idempotencyTable).
		Where(squirrel.Eq{"idempotency_key": key, "status": IdempotencyStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	sql, args, err := Builder().
		Delete(idempotencyTable).
		Where(squirrel.Lt{"expires_at": s.now().UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup: %w", err)
	}
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
