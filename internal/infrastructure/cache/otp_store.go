package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sitetrack/internal/domain/auth"
)

// incrementScript bumps the attempt counter of a stored challenge in place,
// keeping its TTL. Returns -1 when the challenge is gone.
const incrementScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
	return -1
end
local ch = cjson.decode(raw)
ch.attempts = (ch.attempts or 0) + 1
redis.call('SET', KEYS[1], cjson.encode(ch), 'KEEPTTL')
return ch.attempts
`

// OTPStore implements auth.OTPStore on Redis. Challenges expire through
// key TTLs, so any instance can verify a code another instance issued.
type OTPStore struct {
	client *Client
	now    func() time.Time
}

var _ auth.OTPStore = (*OTPStore)(nil)

// NewOTPStore creates a Redis-backed challenge store.
func NewOTPStore(client *Client) *OTPStore {
	return &OTPStore{client: client, now: time.Now}
}

func otpKey(challengeID string) string {
	return Key("otp", challengeID)
}

// Save stores the challenge for ttl.
func (s *OTPStore) Save(ctx context.Context, ch *auth.OTPChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("otp ttl must be positive")
	}
	c := *ch
	c.ExpiresAt = s.now().Add(ttl).UTC()

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.store.Set(ctx, otpKey(ch.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// Get loads a pending challenge.
func (s *OTPStore) Get(ctx context.Context, challengeID string) (*auth.OTPChallenge, error) {
	raw, err := s.client.store.Get(ctx, otpKey(challengeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	var ch auth.OTPChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &ch, nil
}

// IncrementAttempts records a failed verification.
func (s *OTPStore) IncrementAttempts(ctx context.Context, challengeID string) (int, error) {
	n, err := s.client.store.Eval(ctx, incrementScript, []string{otpKey(challengeID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if n < 0 {
		return 0, auth.ErrChallengeNotFound
	}
	return n, nil
}

// Delete removes a challenge.
func (s *OTPStore) Delete(ctx context.Context, challengeID string) error {
	if err := s.client.store.Del(ctx, otpKey(challengeID)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
