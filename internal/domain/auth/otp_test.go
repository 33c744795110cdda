package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/id"
)

func TestRandomCodeGenerator(t *testing.T) {
	gen := RandomCodeGenerator{}
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := gen.Generate(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)

	_, err := gen.Generate(0)
	assert.Error(t, err)
}

func TestNewCodeGenerator(t *testing.T) {
	g, err := NewCodeGenerator("", "")
	require.NoError(t, err)
	assert.IsType(t, RandomCodeGenerator{}, g)

	g, err = NewCodeGenerator(GeneratorFixed, "123456")
	require.NoError(t, err)
	code, err := g.Generate(6)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	_, err = NewCodeGenerator(GeneratorFixed, "")
	assert.Error(t, err)
	_, err = NewCodeGenerator("sms", "")
	assert.Error(t, err)
}

func TestMemoryOTPStore_Expiry(t *testing.T) {
	store := NewMemoryOTPStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ch := &OTPChallenge{ID: "c1", UserID: id.New(), CodeHash: hashToken("123456")}
	require.NoError(t, store.Save(ctx, ch, time.Minute))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Matches("123456"))
	assert.False(t, got.Matches("654321"))

	n, err := store.IncrementAttempts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	_, err = store.IncrementAttempts(ctx, "c1")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@site.test", maskEmail("jane@site.test"))
	assert.Equal(t, "broken", maskEmail("broken"))
}
