package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

type actorRepository struct {
	pool *pgxpool.Pool
}

// NewActorRepository instantiates a Postgres-backed actor directory.
func NewActorRepository(pool *pgxpool.Pool) repository.ActorRepository {
	return &actorRepository{pool: pool}
}

func (r *actorRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	const query = `
		SELECT id, name, roles, created_at, updated_at
		FROM actors
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var actor domain.Actor
	var roles []string

	if err := row.Scan(&actor.ID, &actor.Name, &roles, &actor.CreatedAt, &actor.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActorNotFound
		}
		return nil, err
	}

	actor.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		actor.Roles[i] = domain.Role(role)
	}

	return &actor, nil
}

func (r *actorRepository) Upsert(ctx context.Context, actor *domain.Actor) error {
	if actor == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO actors (id, name, roles, created_at, updated_at)
	VALUES ($1, $2, $3, COALESCE($4, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
		roles = EXCLUDED.roles,
		updated_at = NOW()
	RETURNING created_at, updated_at;
	`

	roles := make([]string, len(actor.Roles))
	for i, role := range actor.Roles {
		roles[i] = string(role)
	}

	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		actor.ID,
		actor.Name,
		roles,
		nullTime(actor.CreatedAt),
	).Scan(&createdAt, &updatedAt); err != nil {
		return err
	}

	actor.CreatedAt = createdAt
	actor.UpdatedAt = updatedAt
	return nil
}
