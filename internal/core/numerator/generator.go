// Package numerator defines automatic code assignment for catalog records
// created without an explicit code. Implementations live in the
// infrastructure layer.
package numerator

import (
	"context"
	"fmt"
	"time"
)

// Generator hands out sequential codes such as PRJ-2024-00001.
type Generator interface {
	Next(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// Strategy defines how numbers are reserved.
type Strategy int

const (
	// StrategyStrict reserves every number with its own UPSERT and never
	// leaves gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges in memory. Restarts leave gaps.
	StrategyCached
)

// Reset periods.
const (
	ResetNever = "never"
	ResetYear  = "year"
	ResetMonth = "month"
)

// Config describes one code series.
type Config struct {
	// Prefix added to all numbers (e.g. "PRJ", "EMP")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod restarts the counter: "year", "month" or "never"
	ResetPeriod string
}

// DefaultConfig returns a yearly series like PRJ-2024-00001.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: ResetYear,
	}
}

// Key is the sequence row a number of cfg in period is drawn from.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case ResetMonth:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case ResetYear:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders num as a code.
func (c Config) Format(period time.Time, num int64) string {
	pad := c.PadWidth
	if pad <= 0 {
		pad = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), pad, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, pad, num)
}
