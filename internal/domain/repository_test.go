package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
)

func TestListFilter_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        ListFilter
		wantLimit int
		wantErr   bool
	}{
		{"zero limit gets default", ListFilter{}, DefaultPageLimit, false},
		{"limit clamped", ListFilter{Limit: 10_000}, MaxPageLimit, false},
		{"limit kept", ListFilter{Limit: 20, Offset: 40}, 20, false},
		{"negative offset", ListFilter{Offset: -1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in
			err := f.Normalize()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, f.Limit)
		})
	}
}
