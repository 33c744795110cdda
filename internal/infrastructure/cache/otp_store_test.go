package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/id"
	"sitetrack/internal/domain/auth"
)

type published struct {
	channel string
	message []byte
}

type mockCmdable struct {
	values    map[string][]byte
	ttls      map[string]time.Duration
	published []published
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.values[key] = v
	case string:
		m.values[key] = []byte(v)
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			delete(m.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	b, _ := message.([]byte)
	m.published = append(m.published, published{channel: channel, message: b})
	return redis.NewIntResult(1, nil)
}

// Eval emulates incrementScript.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	raw, ok := m.values[keys[0]]
	if !ok {
		return redis.NewCmdResult(int64(-1), nil)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return redis.NewCmdResult(nil, err)
	}
	attempts, _ := doc["attempts"].(float64)
	attempts++
	doc["attempts"] = attempts
	m.values[keys[0]], _ = json.Marshal(doc)
	return redis.NewCmdResult(int64(attempts), nil)
}

func TestOTPStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	store := NewOTPStore(&Client{store: mock})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ch := &auth.OTPChallenge{ID: "c1", UserID: id.New(), CodeHash: "hash"}
	require.NoError(t, store.Save(ctx, ch, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mock.ttls["sitetrack:otp:c1"])

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, ch.UserID, got.UserID)
	assert.Equal(t, "hash", got.CodeHash)
	assert.Equal(t, now.Add(5*time.Minute), got.ExpiresAt)

	n, err := store.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	require.NoError(t, store.Delete(ctx, "c1"))
	_, err = store.Get(ctx, "c1")
	assert.ErrorIs(t, err, auth.ErrChallengeNotFound)
	_, err = store.IncrementAttempts(ctx, "c1")
	assert.ErrorIs(t, err, auth.ErrChallengeNotFound)
}

func TestOTPStore_RejectsZeroTTL(t *testing.T) {
	store := NewOTPStore(&Client{store: newMockCmdable()})
	err := store.Save(context.Background(), &auth.OTPChallenge{ID: "c1"}, 0)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sitetrack:otp:abc", Key("otp", "abc"))
	assert.Equal(t, "sitetrack:otp", Key("otp", " ", ""))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(Config{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(Config{URL: "redis://:secret@localhost:6380/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(Config{Address: "cache:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = optionsFromConfig(Config{URL: "://bad"})
	assert.Error(t, err)
}
