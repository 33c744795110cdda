// Package numerator provides the PostgreSQL implementation of automatic
// code numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	corenumerator "sitetrack/internal/core/numerator"
	"sitetrack/internal/infrastructure/storage/postgres"
)

const nextQuery = `
	INSERT INTO code_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = code_sequences.current_val + $2
	RETURNING current_val`

type cachedRange struct {
	current int64
	max     int64
}

// Service hands out codes from the code_sequences table.
type Service struct {
	txManager *postgres.TxManager
	strategy  corenumerator.Strategy
	rangeSize int64

	// cacheMu protects ranges
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numbering service. rangeSize only matters for the cached
// strategy (default 50).
func New(txManager *postgres.TxManager, strategy corenumerator.Strategy, rangeSize int64) *Service {
	if rangeSize <= 0 {
		rangeSize = 50
	}
	return &Service{
		txManager: txManager,
		strategy:  strategy,
		rangeSize: rangeSize,
		ranges:    make(map[string]*cachedRange),
	}
}

// Next returns the next code of the series.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	key := cfg.Key(period)

	var (
		num int64
		err error
	)
	if s.strategy == corenumerator.StrategyCached {
		num, err = s.nextCached(ctx, key)
	} else {
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

// reserve adds n to the sequence and returns the new upper bound.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var upper int64
	if err := s.txManager.GetQuerier(ctx).QueryRow(ctx, nextQuery, key, n).Scan(&upper); err != nil {
		return 0, fmt.Errorf("reserve %s: %w", key, err)
	}
	return upper, nil
}

func (s *Service) nextCached(ctx context.Context, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		upper, err := s.reserve(ctx, key, s.rangeSize)
		if err != nil {
			return 0, err
		}
		// The reserved range is (upper-rangeSize, upper].
		rng.current = upper - s.rangeSize
		rng.max = upper
	}

	rng.current++
	return rng.current, nil
}
