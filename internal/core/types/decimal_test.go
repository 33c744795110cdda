package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{"100", NewQuantity(100), false},
		{"12.5", Quantity(125_000), false},
		{"0.00019", Quantity(1), false},
		{"-3.25", Quantity(-32_500), false},
		{"+7", NewQuantity(7), false},
		{".5", Quantity(5_000), false},
		{"1e2", NewQuantity(100), false},
		{"", 0, true},
		{"abc", 0, true},
		{"99999999999999999", 0, true},
		{"922337203685477.5807", Quantity(math.MaxInt64), false},
		{"922337203685477.9999", 0, true},
		{"1.-5", 0, true},
		{"1.+5", 0, true},
		{"--5", 0, true},
		{"-", 0, true},
		{".", 0, true},
		{"1e300", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantity_JSON(t *testing.T) {
	var payload struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
		C Quantity `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 120, "b": "30.5", "c": null}`), &payload))

	assert.Equal(t, NewQuantity(120), payload.A)
	assert.Equal(t, Quantity(305_000), payload.B)
	assert.True(t, payload.C.IsZero())

	out, err := json.Marshal(payload.B)
	require.NoError(t, err)
	assert.Equal(t, "30.5000", string(out))
}

func TestQuantity_Helpers(t *testing.T) {
	assert.Equal(t, NewQuantity(20), MinQuantity(NewQuantity(20), NewQuantity(50)))
	assert.Equal(t, "-0.0001", Quantity(-1).String())
	assert.Equal(t, "12.5", Quantity(125_000).Decimal().String())
	assert.InDelta(t, 12.5, Quantity(125_000).Float64(), 1e-9)
}

func TestQuantity_AddSaturates(t *testing.T) {
	tests := []struct {
		name string
		a, b Quantity
		want Quantity
	}{
		{"plain", NewQuantity(2), NewQuantity(3), NewQuantity(5)},
		{"negative", NewQuantity(2), NewQuantity(-3), NewQuantity(-1)},
		{"upper bound", Quantity(math.MaxInt64 - 1), NewQuantity(1), Quantity(math.MaxInt64)},
		{"lower bound", Quantity(math.MinInt64 + 1), NewQuantity(-1), Quantity(math.MinInt64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Add(tt.b))
		})
	}
}
