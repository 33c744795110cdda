package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
)

func TestAcquireQuery(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req := IdempotencyRequest{Key: "k1", UserID: "u1", Operation: "POST /api/v1/materials/consume", RequestHash: "h"}

	sql, args, err := acquireQuery(req, now, now.Add(time.Hour)).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO idempotency_keys (idempotency_key,user_id,operation,request_hash,status,created_at,updated_at,expires_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (idempotency_key) DO NOTHING RETURNING idempotency_key",
		sql)
	assert.Len(t, args, 8)
	assert.Equal(t, IdempotencyStatusPending, args[4])
}

func TestIdempotencyStore_Resolve(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &IdempotencyStore{ttl: time.Hour, now: func() time.Time { return now }}
	req := IdempotencyRequest{Key: "k1", UserID: "u1", Operation: "POST /consume", RequestHash: "h"}

	base := func() *idempotencyRecord {
		return &idempotencyRecord{
			Key:         "k1",
			UserID:      "u1",
			Operation:   "POST /consume",
			RequestHash: "h",
			Status:      IdempotencyStatusSuccess,
			Response:    []byte(`{"ok":true}`),
			StatusCode:  201,
			ContentType: "application/json; charset=utf-8",
			UpdatedAt:   now.Add(-10 * time.Second),
			ExpiresAt:   now.Add(time.Hour),
		}
	}

	t.Run("replays finished request", func(t *testing.T) {
		replay, err := store.resolve(context.Background(), req, base(), now)
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
	})

	t.Run("replays failed request with defaults", func(t *testing.T) {
		rec := base()
		rec.Status = IdempotencyStatusFailed
		rec.StatusCode = 0
		rec.ContentType = ""
		replay, err := store.resolve(context.Background(), req, rec, now)
		require.NoError(t, err)
		assert.Equal(t, 200, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
	})

	t.Run("in flight", func(t *testing.T) {
		rec := base()
		rec.Status = IdempotencyStatusPending
		_, err := store.resolve(context.Background(), req, rec, now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyConflict))
	})

	t.Run("different body", func(t *testing.T) {
		rec := base()
		rec.RequestHash = "other"
		_, err := store.resolve(context.Background(), req, rec, now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyMismatch))
	})

	t.Run("different user", func(t *testing.T) {
		rec := base()
		rec.UserID = "u2"
		_, err := store.resolve(context.Background(), req, rec, now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyMismatch))
	})
}
