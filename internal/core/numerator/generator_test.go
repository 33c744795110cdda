package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_KeyAndFormat(t *testing.T) {
	period := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  Config
		key  string
		code string
	}{
		{"yearly", DefaultConfig("PRJ"), "PRJ_2024", "PRJ-2024-00007"},
		{"monthly", Config{Prefix: "EMP", ResetPeriod: ResetMonth, PadWidth: 3}, "EMP_2024_03", "EMP-007"},
		{"never", Config{Prefix: "X", ResetPeriod: ResetNever}, "X", "X-00007"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.cfg.Key(period))
			assert.Equal(t, tt.code, tt.cfg.Format(period, 7))
		})
	}
}
