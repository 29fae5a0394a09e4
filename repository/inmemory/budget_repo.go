package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

// BudgetStorage is an in-memory BudgetRepository. A single mutex guards
// the account map, so reservations against the same (actor, date) key
// are serialized and can never jointly overdraw the allowance.
type BudgetStorage struct {
	mu       sync.Mutex
	accounts map[budgetKey]*domain.BudgetAccount
}

type budgetKey struct {
	actorID string
	date    string
}

func NewBudgetStorage() *BudgetStorage {
	return &BudgetStorage{accounts: make(map[budgetKey]*domain.BudgetAccount)}
}

func (s *BudgetStorage) Reserve(ctx context.Context, actorID, date string, cost, allowance int) (int, error) {
	if cost < 0 {
		return 0, domain.NewValidationError("cost", "must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.account(actorID, date, allowance)
	if account.Remaining < cost {
		return 0, domain.NewInsufficientBudget(account.Remaining, cost)
	}

	account.Remaining -= cost
	account.UpdatedAt = time.Now()
	return account.Remaining, nil
}

func (s *BudgetStorage) Release(ctx context.Context, actorID, date string, amount int) error {
	if amount <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[budgetKey{actorID: actorID, date: date}]
	if !ok {
		return domain.ErrBudgetNotFound
	}
	account.Remaining += amount
	account.UpdatedAt = time.Now()
	return nil
}

func (s *BudgetStorage) Remaining(ctx context.Context, actorID, date string, allowance int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[budgetKey{actorID: actorID, date: date}]
	if !ok {
		return allowance, nil
	}
	return account.Remaining, nil
}

// account lazily materializes the row, mirroring the Postgres
// implementation's INSERT ... ON CONFLICT DO NOTHING.
func (s *BudgetStorage) account(actorID, date string, allowance int) *domain.BudgetAccount {
	key := budgetKey{actorID: actorID, date: date}
	if account, ok := s.accounts[key]; ok {
		return account
	}
	account := &domain.BudgetAccount{
		ActorID:   actorID,
		Date:      date,
		Remaining: allowance,
		UpdatedAt: time.Now(),
	}
	s.accounts[key] = account
	return account
}

var _ repository.BudgetRepository = (*BudgetStorage)(nil)
