package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

type budgetRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetRepository returns a Postgres-backed implementation of
// BudgetRepository. Linearizability per (actor_id, date) comes from the
// row-level lock taken by the conditional UPDATE.
func NewBudgetRepository(pool *pgxpool.Pool) repository.BudgetRepository {
	return &budgetRepository{pool: pool}
}

func (r *budgetRepository) Reserve(ctx context.Context, actorID, date string, cost, allowance int) (int, error) {
	if cost < 0 {
		return 0, domain.NewValidationError("cost", "must not be negative")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// Lazy account creation: first reservation of the day materializes
	// the row with the full allowance.
	const insert = `
	INSERT INTO budget_accounts (actor_id, date, remaining)
	VALUES ($1, $2, $3)
	ON CONFLICT (actor_id, date) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, actorID, date, allowance); err != nil {
		return 0, err
	}

	const deduct = `
	UPDATE budget_accounts
	SET remaining = remaining - $3,
		updated_at = NOW()
	WHERE actor_id = $1 AND date = $2 AND remaining >= $3
	RETURNING remaining
	`
	var remaining int
	if err := tx.QueryRow(ctx, deduct, actorID, date, cost).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			left, lookupErr := r.remainingTx(ctx, tx, actorID, date)
			if lookupErr != nil {
				return 0, lookupErr
			}
			return 0, domain.NewInsufficientBudget(left, cost)
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *budgetRepository) Release(ctx context.Context, actorID, date string, amount int) error {
	if amount <= 0 {
		return nil
	}
	const query = `
	UPDATE budget_accounts
	SET remaining = remaining + $3,
		updated_at = NOW()
	WHERE actor_id = $1 AND date = $2
	`
	tag, err := r.pool.Exec(ctx, query, actorID, date, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBudgetNotFound
	}
	return nil
}

func (r *budgetRepository) Remaining(ctx context.Context, actorID, date string, allowance int) (int, error) {
	const query = `SELECT remaining FROM budget_accounts WHERE actor_id = $1 AND date = $2`
	var remaining int
	if err := r.pool.QueryRow(ctx, query, actorID, date).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No spend recorded for the day yet.
			return allowance, nil
		}
		return 0, err
	}
	return remaining, nil
}

func (r *budgetRepository) remainingTx(ctx context.Context, tx pgx.Tx, actorID, date string) (int, error) {
	var remaining int
	err := tx.QueryRow(ctx, `SELECT remaining FROM budget_accounts WHERE actor_id = $1 AND date = $2`, actorID, date).Scan(&remaining)
	return remaining, err
}
