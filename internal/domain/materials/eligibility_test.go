package materials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEligibility(t *testing.T) {
	tests := []struct {
		policy  string
		rule    string
		want    string
		wantErr bool
	}{
		{policy: "", want: PolicySkipOutOfStock},
		{policy: PolicySkipOutOfStock, want: PolicySkipOutOfStock},
		{policy: PolicyAdvisory, want: PolicyAdvisory},
		{policy: PolicyExpression, rule: "status != 'on_hold'", want: "expression:status != 'on_hold'"},
		{policy: PolicyExpression, wantErr: true},
		{policy: PolicyExpression, rule: "remaining + 1", wantErr: true},
		{policy: PolicyExpression, rule: "unknown_var > 1", wantErr: true},
		{policy: "strict", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.policy+"/"+tt.rule, func(t *testing.T) {
			e, err := NewEligibility(tt.policy, tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}
}

func TestEligibility_Policies(t *testing.T) {
	now := day(20)
	available := testBatch("CEM1", 10, day(1))
	held := testBatch("CEM1", 10, day(2))
	held.Status = StatusOnHold
	flagged := testBatch("CEM1", 10, day(3))
	flagged.Status = StatusOutOfStock

	rule, err := NewExpressionEligibility("status == 'available' && age_days >= 18")
	require.NoError(t, err)

	tests := []struct {
		name   string
		policy Eligibility
		want   []*Batch
	}{
		{"advisory", Advisory{}, []*Batch{available, held, flagged}},
		{"skip out of stock", SkipOutOfStock{}, []*Batch{available, held}},
		{"expression", rule, []*Batch{available}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterEligible(tt.policy, []*Batch{available, held, flagged}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionEligibility_Variables(t *testing.T) {
	b := testBatch("CEM1", 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b.RemainingQuantity = b.RemainingQuantity / 4

	rule, err := NewExpressionEligibility("code == 'CEM1' && remaining < delivered && remaining == 25.0 && age_days == 10")
	require.NoError(t, err)

	ok, err := rule.Eligible(b, time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)
}
