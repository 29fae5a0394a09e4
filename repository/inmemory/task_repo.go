package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

// TaskStorage is an in-memory TaskRepository with the same
// compare-and-swap semantics as the Postgres implementation. Used in
// tests and for running the service without a database.
type TaskStorage struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{tasks: make(map[string]*domain.Task)}
}

func (s *TaskStorage) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

func (s *TaskStorage) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []domain.Task
	for _, task := range s.tasks {
		if !matches(task, filter) {
			continue
		}
		tasks = append(tasks, *cloneTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})

	offset := filter.Offset
	if offset > len(tasks) {
		offset = len(tasks)
	}
	tasks = tasks[offset:]

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *TaskStorage) ListDueBefore(ctx context.Context, deadline time.Time, statuses []domain.Status, limit int) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var tasks []domain.Task
	for _, task := range s.tasks {
		if !task.DueAt.Before(deadline) {
			continue
		}
		if !containsStatus(statuses, task.Status) {
			continue
		}
		tasks = append(tasks, *cloneTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *TaskStorage) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now

	s.tasks[task.ID] = cloneTask(task)
	return task, nil
}

func (s *TaskStorage) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if stored.Version != task.Version {
		return domain.ErrVersionConflict
	}

	task.Version++
	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *TaskStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func matches(task *domain.Task, filter repository.TaskFilter) bool {
	if filter.Station != "" && string(task.Station) != filter.Station {
		return false
	}
	if filter.Status != "" && string(task.Status) != filter.Status {
		return false
	}
	if filter.AssignerID != "" && task.AssignerID != filter.AssignerID {
		return false
	}
	if filter.AssigneeID != "" && !task.AssignedTo(filter.AssigneeID) {
		return false
	}
	return true
}

func containsStatus(statuses []domain.Status, status domain.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneTask(task *domain.Task) *domain.Task {
	clone := *task
	if task.AssigneeID != nil {
		id := *task.AssigneeID
		clone.AssigneeID = &id
	}
	if task.FinalPoints != nil {
		v := *task.FinalPoints
		clone.FinalPoints = &v
	}
	if task.Multiplier != nil {
		v := *task.Multiplier
		clone.Multiplier = &v
	}
	if task.Adjustment != nil {
		v := *task.Adjustment
		clone.Adjustment = &v
	}
	if task.CompletedAt != nil {
		t := *task.CompletedAt
		clone.CompletedAt = &t
	}
	if task.ApprovedAt != nil {
		t := *task.ApprovedAt
		clone.ApprovedAt = &t
	}
	clone.ProofData = append([]byte(nil), task.ProofData...)
	clone.Repeat = append([]byte(nil), task.Repeat...)
	return &clone
}

var _ repository.TaskRepository = (*TaskStorage)(nil)
