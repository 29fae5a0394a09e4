package budget

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

// Ledger tracks each management actor's remaining daily discretionary
// budget. Every approval carrying a non-zero point adjustment (and the
// related disciplinary deductions) reserves its absolute cost here
// before the task transition commits. Accounts are keyed per
// (actor, calendar day), so the daily reset needs no job: a new day is
// simply a fresh key at the full allowance.
type Ledger struct {
	repo      repository.BudgetRepository
	allowance int
	logger    *zap.Logger
}

// New builds a ledger with the configured daily allowance.
func New(repo repository.BudgetRepository, allowance int, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if allowance < 0 {
		allowance = 0
	}
	return &Ledger{
		repo:      repo,
		allowance: allowance,
		logger:    logger,
	}
}

// Allowance returns the configured daily allowance.
func (l *Ledger) Allowance() int {
	return l.allowance
}

// Reserve atomically spends cost from the actor's account for the day
// containing at. A zero cost is a no-op reporting the current balance.
func (l *Ledger) Reserve(ctx context.Context, actorID string, at time.Time, cost int) (int, error) {
	date := domain.BudgetDay(at)
	if cost == 0 {
		return l.repo.Remaining(ctx, actorID, date, l.allowance)
	}

	remaining, err := l.repo.Reserve(ctx, actorID, date, cost, l.allowance)
	if err != nil {
		return 0, err
	}

	l.logger.Debug("budget reserved",
		zap.String("actor_id", actorID),
		zap.String("date", date),
		zap.Int("cost", cost),
		zap.Int("remaining", remaining))
	return remaining, nil
}

// Release compensates a reservation whose transition failed to commit,
// so the budget is not lost to a phantom spend.
func (l *Ledger) Release(ctx context.Context, actorID string, at time.Time, amount int) error {
	if amount <= 0 {
		return nil
	}
	date := domain.BudgetDay(at)
	if err := l.repo.Release(ctx, actorID, date, amount); err != nil {
		l.logger.Error("budget release failed",
			zap.String("actor_id", actorID),
			zap.String("date", date),
			zap.Int("amount", amount),
			zap.Error(err))
		return err
	}
	return nil
}

// Remaining reports the balance for the given day; actors with no spend
// that day report the full allowance.
func (l *Ledger) Remaining(ctx context.Context, actorID string, at time.Time) (int, error) {
	return l.repo.Remaining(ctx, actorID, domain.BudgetDay(at), l.allowance)
}
