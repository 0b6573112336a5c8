// ABOUTME: Credit balance collaborator for the relay
// ABOUTME: Pre-flight balance checks and per-turn deductions
package credits

import (
	"context"
	"errors"
)

// ErrInsufficientBalance marks a turn rejected before any upstream call
var ErrInsufficientBalance = errors.New("insufficient credit balance")

// Authorizer is the billing collaborator the relay consults before
// relaying a user turn
type Authorizer interface {
	// Check reports whether the user can afford a turn and the
	// remaining balance
	Check(ctx context.Context, userID string) (ok bool, remaining int64, err error)

	// Deduct charges the user for one completed turn
	Deduct(ctx context.Context, userID string, amount int64) error
}

// Static is an in-process authorizer with a fixed per-user ledger.
// Used in development and tests; production wires the HTTP client.
type Static struct {
	balances map[string]int64
}

// NewStatic creates a static authorizer seeding every listed user
func NewStatic(balances map[string]int64) *Static {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &Static{balances: balances}
}

// AllowAll returns a static authorizer that never runs out
func AllowAll() *Static {
	return &Static{balances: nil}
}

// Check reports whether the user has a positive balance
func (s *Static) Check(ctx context.Context, userID string) (bool, int64, error) {
	if s.balances == nil {
		return true, 1 << 30, nil
	}
	remaining := s.balances[userID]
	return remaining > 0, remaining, nil
}

// Deduct charges against the in-memory ledger
func (s *Static) Deduct(ctx context.Context, userID string, amount int64) error {
	if s.balances == nil {
		return nil
	}
	if s.balances[userID] < amount {
		return ErrInsufficientBalance
	}
	s.balances[userID] -= amount
	return nil
}
