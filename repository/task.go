package repository

import (
	"context"
	"time"

	"github.com/shiftline/backend/domain"
)

type TaskFilter struct {
	Station    string
	Status     string
	AssignerID string
	AssigneeID string
	Limit      int
	Offset     int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// ListDueBefore returns tasks in the given statuses whose deadline
	// has passed. Used by the overdue sweeper.
	ListDueBefore(ctx context.Context, deadline time.Time, statuses []domain.Status, limit int) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Update writes the task conditioned on task.Version matching the
	// stored row, bumping the version on success. A mismatch yields
	// domain.ErrVersionConflict and leaves the row unchanged.
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}
