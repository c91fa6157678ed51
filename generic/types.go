/*
Package generic provides the domain-agnostic core of the gym ledger.

PURPOSE:
  Everything in this package is independent of gyms, members and sales.
  It defines the document store contract, atomic batches, calendar days,
  money helpers, operator identity and the error taxonomy. The gym and
  ledger packages build the business rules on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal amounts, never float64
  - Operator: the staff identity carried in context.Context

DESIGN PRINCIPLES:
  1. Precision: money uses decimal.Decimal to avoid floating-point errors
  2. Explicit state: operator identity is passed in the context, not
     held in a process-wide global
  3. Store agnostic: no SQL or JSON-path knowledge leaks above store.go

SEE ALSO:
  - store.go:  Document store interface
  - batch.go:  Atomic write batches
  - time.go:   Calendar days and clocks
  - errors.go: Error taxonomy
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// NewMoney builds an amount from an integer number of currency units.
func NewMoney(units int64) decimal.Decimal {
	return decimal.NewFromInt(units)
}

// SumMoney adds amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// OPERATOR - Staff identity for the current action
// =============================================================================

// Operator is the signed-in staff member performing an action.
type Operator struct {
	ID    string
	Email string
	Name  string
}

// Label returns the best human-readable identifier.
func (o Operator) Label() string {
	switch {
	case o.Email != "":
		return o.Email
	case o.Name != "":
		return o.Name
	}
	return o.ID
}

type operatorKey struct{}

// WithOperator returns a context carrying op.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator in ctx, if any.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	if !ok || (op.ID == "" && op.Email == "") {
		return Operator{}, false
	}
	return op, true
}

// RequireOperator returns the operator or ErrNoOperator.
func RequireOperator(ctx context.Context) (Operator, error) {
	op, ok := OperatorFrom(ctx)
	if !ok {
		return Operator{}, ErrNoOperator
	}
	return op, nil
}
