package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
)

func TestParseRequiredID(t *testing.T) {
	valid := id.New()

	tests := []struct {
		name    string
		raw     string
		want    id.ID
		wantErr bool
	}{
		{"valid", valid.String(), valid, false},
		{"blank", "", id.Nil(), true},
		{"malformed", "not-a-uuid", id.Nil(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequiredID("projectId", tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				assert.True(t, id.IsNil(got))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
