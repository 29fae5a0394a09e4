package repository

import "context"

// BudgetRepository persists per-actor per-day discretionary budget
// accounts. Implementations must make Reserve linearizable per
// (actorID, date): two concurrent reservations against the same key
// must never jointly exceed the account's remaining amount.
type BudgetRepository interface {
	// Reserve atomically deducts cost from the account, creating it
	// with the given allowance on first use. It returns the new
	// remaining amount, or a domain error with code
	// INSUFFICIENT_BUDGET when the deduction would drive the account
	// negative.
	Reserve(ctx context.Context, actorID, date string, cost, allowance int) (int, error)
	// Release returns a previously reserved amount to the account,
	// compensating for a transition that failed after its reservation
	// succeeded.
	Release(ctx context.Context, actorID, date string, amount int) error
	// Remaining reports the amount left for the key. Accounts that have
	// never spent report the full allowance.
	Remaining(ctx context.Context, actorID, date string, allowance int) (int, error)
}
