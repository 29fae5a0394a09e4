package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `
	id, title, description, station, status, due_at, base_points,
	assigner_id, assignee_id, proof_type, proof_data, repeat,
	final_points, multiplier, adjustment, rejection_reason,
	completed_at, approved_at, version, created_at, updated_at
`

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR station = $1)
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR assigner_id = $3)
	  AND ($4 = '' OR assignee_id = $4)
	ORDER BY due_at ASC, created_at DESC
	LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		filter.Station,
		filter.Status,
		filter.AssignerID,
		filter.AssigneeID,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *taskRepository) ListDueBefore(ctx context.Context, deadline time.Time, statuses []domain.Status, limit int) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE due_at < $1
	  AND status = ANY($2)
	ORDER BY due_at ASC
	LIMIT $3
	`
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, query, deadline, states, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (
		id, title, description, station, status, due_at, base_points,
		assigner_id, assignee_id, proof_type, proof_data, repeat, version
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
	RETURNING version, created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Station,
		task.Status,
		task.DueAt,
		task.BasePoints,
		task.AssignerID,
		task.AssigneeID,
		task.ProofType,
		nullJSON(task.ProofData),
		nullJSON(task.Repeat),
	).Scan(&task.Version, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// Update performs a compare-and-swap on the version column. When the
// stored version differs from task.Version the row is untouched and the
// caller gets ErrVersionConflict.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		station = $4,
		status = $5,
		due_at = $6,
		assignee_id = $7,
		proof_type = $8,
		proof_data = $9,
		repeat = $10,
		final_points = $11,
		multiplier = $12,
		adjustment = $13,
		rejection_reason = $14,
		completed_at = $15,
		approved_at = $16,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND version = $17
	RETURNING version, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Station,
		task.Status,
		task.DueAt,
		task.AssigneeID,
		task.ProofType,
		nullJSON(task.ProofData),
		nullJSON(task.Repeat),
		task.FinalPoints,
		task.Multiplier,
		task.Adjustment,
		task.RejectionReason,
		task.CompletedAt,
		task.ApprovedAt,
		task.Version,
	).Scan(&task.Version, &task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classifyMissedUpdate(ctx, task.ID)
		}
		return err
	}

	return nil
}

// classifyMissedUpdate distinguishes a vanished row from a version
// clash after a zero-row CAS update.
func (r *taskRepository) classifyMissedUpdate(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrVersionConflict
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		proofData []byte
		repeat    []byte
		// Nullable in rows created before the column default existed.
		rejection *string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Station,
		&task.Status,
		&task.DueAt,
		&task.BasePoints,
		&task.AssignerID,
		&task.AssigneeID,
		&task.ProofType,
		&proofData,
		&repeat,
		&task.FinalPoints,
		&task.Multiplier,
		&task.Adjustment,
		&rejection,
		&task.CompletedAt,
		&task.ApprovedAt,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.ProofData = proofData
	task.Repeat = repeat
	if rejection != nil {
		task.RejectionReason = *rejection
	}
	return &task, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
