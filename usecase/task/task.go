package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
	"github.com/shiftline/backend/usecase"
	budgetUC "github.com/shiftline/backend/usecase/budget"
)

// defaultRetries bounds how often a transition is retried after an
// optimistic-concurrency conflict before the conflict is surfaced.
const defaultRetries = 3

// UseCase is the boundary handlers and background workers talk to. It
// composes the permission guard, the state machine and the budget
// ledger, and serializes per-task mutation through the repository's
// compare-and-swap update.
type UseCase struct {
	tasks    repository.TaskRepository
	actors   repository.ActorRepository
	budget   *budgetUC.Ledger
	machine  *Machine
	notifier usecase.OverdueNotifier
	logger   *zap.Logger
	now      func() time.Time
	retries  int
}

// New wires the task use case. notifier may be nil when overdue notices
// are not wanted (e.g. in tests).
func New(
	tasks repository.TaskRepository,
	actors repository.ActorRepository,
	budget *budgetUC.Ledger,
	machine *Machine,
	notifier usecase.OverdueNotifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		actors:   actors,
		budget:   budget,
		machine:  machine,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		retries:  defaultRetries,
	}
}

// WithClock overrides the time source. Intended for tests.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

// CreateInput carries the fields a caller may set when creating a task.
type CreateInput struct {
	Title       string
	Description string
	Station     domain.Station
	DueAt       time.Time
	BasePoints  int
	ProofType   domain.ProofType
	Repeat      json.RawMessage
}

// CreateTask validates the input and stores a new open task assigned by
// actorID.
func (uc *UseCase) CreateTask(ctx context.Context, input CreateInput, actorID string) (*domain.Task, error) {
	if _, err := uc.actors.GetByID(ctx, actorID); err != nil {
		return nil, err
	}
	if input.Title == "" {
		return nil, domain.NewValidationError("title", "must not be empty")
	}
	if !domain.ValidStation(input.Station) {
		return nil, domain.NewValidationError("station", "unknown station")
	}
	if input.BasePoints <= 0 {
		return nil, domain.NewValidationError("base_points", "must be a positive integer")
	}
	if input.DueAt.IsZero() {
		return nil, domain.NewValidationError("due_at", "must be set")
	}
	proofType := input.ProofType
	if proofType == "" {
		proofType = domain.ProofNone
	}
	if !domain.ValidProofType(proofType) {
		return nil, domain.NewValidationError("proof_type", "unknown proof type")
	}

	t := &domain.Task{
		Title:       input.Title,
		Description: input.Description,
		Station:     input.Station,
		Status:      domain.StatusOpen,
		DueAt:       input.DueAt,
		BasePoints:  input.BasePoints,
		AssignerID:  actorID,
		ProofType:   proofType,
		Repeat:      input.Repeat,
	}

	created, err := uc.tasks.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("task created",
		zap.String("task_id", created.ID),
		zap.String("assigner_id", actorID),
		zap.String("station", string(created.Station)))
	return created, nil
}

// GetTask fetches a task, recomputing the derived overdue-days field.
func (uc *UseCase) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.RecomputeOverdueDays(uc.now())
	return t, nil
}

// ListTasks lists tasks matching the filter.
func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	for i := range tasks {
		tasks[i].RecomputeOverdueDays(now)
	}
	return tasks, nil
}

// Transition applies the named intent to the task on behalf of actorID.
// Guard evaluation, payload validation, budget reservation (approvals
// only) and the state write form one unit: a failure at any step leaves
// the task unchanged, and a reservation whose write loses the
// compare-and-swap race is released before the retry.
func (uc *UseCase) Transition(ctx context.Context, taskID string, intent Intent, payload Payload, actorID string) (*domain.Task, error) {
	// The sweep intent belongs to the sweeper, not to callers.
	if intent == IntentSweep {
		t, err := uc.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return nil, domain.NewInvalidTransition(t.Status, string(intent))
	}

	actor, err := uc.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= uc.retries; attempt++ {
		t, err := uc.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}

		var assigner *domain.Actor
		if intent == IntentClaim {
			assigner, err = uc.lookupAssigner(ctx, t.AssignerID)
			if err != nil {
				return nil, err
			}
		}

		now := uc.now()
		cost, err := uc.machine.Apply(t, intent, actor, assigner, payload, now)
		if err != nil {
			return nil, err
		}

		if cost > 0 {
			if _, err := uc.budget.Reserve(ctx, actor.ID, now, cost); err != nil {
				return nil, err
			}
		}

		err = uc.tasks.Update(ctx, t)
		if err == nil {
			uc.logger.Info("task transitioned",
				zap.String("task_id", t.ID),
				zap.String("intent", string(intent)),
				zap.String("status", string(t.Status)),
				zap.String("actor_id", actor.ID))
			t.RecomputeOverdueDays(now)
			return t, nil
		}

		if cost > 0 {
			// The reservation is durable once made; roll it back so the
			// failed write does not leak budget.
			if relErr := uc.budget.Release(ctx, actor.ID, now, cost); relErr != nil {
				uc.logger.Error("failed to release budget after write failure",
					zap.String("task_id", t.ID), zap.Error(relErr))
			}
		}

		if !errors.Is(err, domain.ErrVersionConflict) && !domain.IsDomainError(err, domain.ErrCodeConflict) {
			return nil, err
		}
		lastErr = err
		uc.logger.Debug("transition conflicted, retrying",
			zap.String("task_id", taskID),
			zap.String("intent", string(intent)),
			zap.Int("attempt", attempt+1))
	}

	return nil, lastErr
}

// UpdateInput carries the editable fields of a task. Nil pointers leave
// the field untouched. Base points, status and ownership are not
// editable through this path.
type UpdateInput struct {
	Title       *string
	Description *string
	Station     *domain.Station
	DueAt       *time.Time
	ProofType   *domain.ProofType
	Repeat      json.RawMessage
}

// UpdateTask edits a task's descriptive fields, gated by the edit guard.
func (uc *UseCase) UpdateTask(ctx context.Context, taskID string, input UpdateInput, actorID string) (*domain.Task, error) {
	actor, err := uc.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= uc.retries; attempt++ {
		t, err := uc.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := CanEdit(actor, t).Err(); err != nil {
			return nil, err
		}
		if err := applyEdit(t, input); err != nil {
			return nil, err
		}

		err = uc.tasks.Update(ctx, t)
		if err == nil {
			t.RecomputeOverdueDays(uc.now())
			return t, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func applyEdit(t *domain.Task, input UpdateInput) error {
	if input.Title != nil {
		if *input.Title == "" {
			return domain.NewValidationError("title", "must not be empty")
		}
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Station != nil {
		if !domain.ValidStation(*input.Station) {
			return domain.NewValidationError("station", "unknown station")
		}
		t.Station = *input.Station
	}
	if input.DueAt != nil {
		if input.DueAt.IsZero() {
			return domain.NewValidationError("due_at", "must be set")
		}
		t.DueAt = *input.DueAt
	}
	if input.ProofType != nil {
		if !domain.ValidProofType(*input.ProofType) {
			return domain.NewValidationError("proof_type", "unknown proof type")
		}
		t.ProofType = *input.ProofType
	}
	if input.Repeat != nil {
		t.Repeat = input.Repeat
	}
	return nil
}

// DeleteTask removes a task, gated by the delete guard.
func (uc *UseCase) DeleteTask(ctx context.Context, taskID, actorID string) error {
	actor, err := uc.actors.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	t, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := CanDelete(actor, t).Err(); err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	uc.logger.Info("task deleted",
		zap.String("task_id", taskID),
		zap.String("actor_id", actorID))
	return nil
}

// sweepStatuses are the states a task can go overdue from.
var sweepStatuses = []domain.Status{domain.StatusOpen, domain.StatusInProgress, domain.StatusOnHold}

// RunOverdueSweep transitions every past-due open, in-progress or
// on-hold task to overdue and queues a notice for its assigner. One
// task's failure is logged and skipped, never propagated; re-running
// the sweep with the same clock is a no-op for already-overdue tasks.
// Returns the number of tasks transitioned.
func (uc *UseCase) RunOverdueSweep(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := uc.tasks.ListDueBefore(ctx, now, sweepStatuses, batchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range due {
		t := &due[i]
		if _, err := uc.machine.Apply(t, IntentSweep, nil, nil, Payload{}, now); err != nil {
			uc.logger.Warn("sweep transition rejected",
				zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		if err := uc.tasks.Update(ctx, t); err != nil {
			// A human transition won the race; the next sweep pass will
			// pick the task up again if it is still due.
			uc.logger.Warn("sweep write skipped",
				zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		swept++

		if uc.notifier != nil {
			if err := uc.notifier.NotifyOverdue(ctx, t); err != nil {
				uc.logger.Error("failed to queue overdue notice",
					zap.String("task_id", t.ID), zap.Error(err))
			}
		}
	}

	if swept > 0 {
		uc.logger.Info("overdue sweep finished",
			zap.Int("checked", len(due)),
			zap.Int("swept", swept))
	}
	return swept, nil
}

// RemainingBudget reports the actor's discretionary balance for the day
// containing at.
func (uc *UseCase) RemainingBudget(ctx context.Context, actorID string, at time.Time) (int, error) {
	return uc.budget.Remaining(ctx, actorID, at)
}

// lookupAssigner resolves the claim guard's assigner role set. An
// assigner missing from the directory is treated as unknown (nil), not
// as an error: claim rules then fall back to the conservative path.
func (uc *UseCase) lookupAssigner(ctx context.Context, assignerID string) (*domain.Actor, error) {
	assigner, err := uc.actors.GetByID(ctx, assignerID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return assigner, nil
}
