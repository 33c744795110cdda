package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"sitetrack/internal/core/id"
	"sitetrack/pkg/logger"
)

// Code generator names selectable from configuration.
const (
	GeneratorRandom = "random"
	GeneratorFixed  = "fixed"
)

// ErrChallengeNotFound is returned by an OTPStore for unknown or expired
// challenges.
var ErrChallengeNotFound = errors.New("otp challenge not found")

// CodeGenerator produces one-time login codes.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// RandomCodeGenerator produces uniformly random numeric codes.
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length %d", length)
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// FixedCodeGenerator always returns Code. Development and tests only.
type FixedCodeGenerator struct {
	Code string
}

func (g FixedCodeGenerator) Generate(int) (string, error) {
	if g.Code == "" {
		return "", errors.New("fixed code is empty")
	}
	return g.Code, nil
}

// NewCodeGenerator builds the generator named in configuration.
func NewCodeGenerator(name, fixedCode string) (CodeGenerator, error) {
	switch name {
	case "", GeneratorRandom:
		return RandomCodeGenerator{}, nil
	case GeneratorFixed:
		if fixedCode == "" {
			return nil, errors.New("fixed otp generator requires a code")
		}
		return FixedCodeGenerator{Code: fixedCode}, nil
	default:
		return nil, fmt.Errorf("unknown otp generator %q", name)
	}
}

// OTPChallenge is a pending second login step.
type OTPChallenge struct {
	ID        string    `json:"id"`
	UserID    id.ID     `json:"userId"`
	CodeHash  string    `json:"codeHash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Matches compares code against the stored hash in constant time.
func (c *OTPChallenge) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(hashToken(code)), []byte(c.CodeHash)) == 1
}

// OTPStore keeps pending challenges until they expire.
type OTPStore interface {
	Save(ctx context.Context, ch *OTPChallenge, ttl time.Duration) error
	Get(ctx context.Context, challengeID string) (*OTPChallenge, error)
	// IncrementAttempts records a failed verification and returns the new count.
	IncrementAttempts(ctx context.Context, challengeID string) (int, error)
	Delete(ctx context.Context, challengeID string) error
}

// CodeSender delivers codes to users.
type CodeSender interface {
	Send(ctx context.Context, user *User, code string) error
}

// LogSender writes codes to the application log. Development only.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, user *User, code string) error {
	logger.Info(ctx, "otp code issued", "user_id", user.ID, "email", user.Email, "code", code)
	return nil
}

// MemoryOTPStore is an OTPStore for single-instance deployments without
// Redis.
type MemoryOTPStore struct {
	mu    sync.Mutex
	items map[string]*OTPChallenge
	now   func() time.Time
}

// NewMemoryOTPStore creates an empty store.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{items: make(map[string]*OTPChallenge), now: time.Now}
}

func (s *MemoryOTPStore) Save(ctx context.Context, ch *OTPChallenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	c := *ch
	c.ExpiresAt = s.now().Add(ttl)
	s.items[ch.ID] = &c
	return nil
}

func (s *MemoryOTPStore) Get(ctx context.Context, challengeID string) (*OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[challengeID]
	if !ok || !s.now().Before(c.ExpiresAt) {
		delete(s.items, challengeID)
		return nil, ErrChallengeNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryOTPStore) IncrementAttempts(ctx context.Context, challengeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[challengeID]
	if !ok || !s.now().Before(c.ExpiresAt) {
		return 0, ErrChallengeNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *MemoryOTPStore) Delete(ctx context.Context, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, challengeID)
	return nil
}

func (s *MemoryOTPStore) evictLocked() {
	now := s.now()
	for k, c := range s.items {
		if !now.Before(c.ExpiresAt) {
			delete(s.items, k)
		}
	}
}
