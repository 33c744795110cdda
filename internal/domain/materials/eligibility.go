package materials

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Consumption policies selectable from configuration.
const (
	PolicyAdvisory       = "advisory"
	PolicySkipOutOfStock = "skip_out_of_stock"
	PolicyExpression     = "expression"
)

// Eligibility decides whether a batch with stock may be consumed.
// The FIFO planner only sees batches that pass.
type Eligibility interface {
	Name() string
	Eligible(b *Batch, now time.Time) (bool, error)
}

// NewEligibility builds the policy named by cfg. rule is only used by
// PolicyExpression.
func NewEligibility(policy, rule string) (Eligibility, error) {
	switch policy {
	case "", PolicySkipOutOfStock:
		return SkipOutOfStock{}, nil
	case PolicyAdvisory:
		return Advisory{}, nil
	case PolicyExpression:
		return NewExpressionEligibility(rule)
	default:
		return nil, fmt.Errorf("unknown consume policy %q", policy)
	}
}

// Advisory treats status as informational; every batch is eligible.
type Advisory struct{}

func (Advisory) Name() string { return PolicyAdvisory }

func (Advisory) Eligible(*Batch, time.Time) (bool, error) { return true, nil }

// SkipOutOfStock excludes batches flagged out of stock.
type SkipOutOfStock struct{}

func (SkipOutOfStock) Name() string { return PolicySkipOutOfStock }

func (SkipOutOfStock) Eligible(b *Batch, _ time.Time) (bool, error) {
	return b.Status != StatusOutOfStock, nil
}

// ExpressionEligibility evaluates a CEL expression per batch. Variables:
// status, code (string), remaining, delivered (double), age_days (int).
//
//	status == 'available' && age_days < 365
type ExpressionEligibility struct {
	source  string
	program cel.Program
}

// NewExpressionEligibility compiles rule. The expression must yield a bool.
func NewExpressionEligibility(rule string) (*ExpressionEligibility, error) {
	if rule == "" {
		return nil, fmt.Errorf("consume rule is empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("code", cel.StringType),
		cel.Variable("remaining", cel.DoubleType),
		cel.Variable("delivered", cel.DoubleType),
		cel.Variable("age_days", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile consume rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("consume rule must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build consume rule program: %w", err)
	}

	return &ExpressionEligibility{source: rule, program: prg}, nil
}

func (e *ExpressionEligibility) Name() string { return PolicyExpression + ":" + e.source }

func (e *ExpressionEligibility) Eligible(b *Batch, now time.Time) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{
		"status":    string(b.Status),
		"code":      b.MaterialCode,
		"remaining": b.RemainingQuantity.Float64(),
		"delivered": b.DeliveredQuantity.Float64(),
		"age_days":  int64(now.Sub(b.DeliveredDate) / (24 * time.Hour)),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate consume rule for batch %s: %w", b.ID, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("consume rule returned %T", out.Value())
	}
	return ok, nil
}

// filterEligible keeps the batches the policy accepts.
func filterEligible(policy Eligibility, batches []*Batch, now time.Time) ([]*Batch, error) {
	out := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		ok, err := policy.Eligible(b, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}
