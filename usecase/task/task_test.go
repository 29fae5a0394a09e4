package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
	"github.com/shiftline/backend/repository/inmemory"
	budgetUC "github.com/shiftline/backend/usecase/budget"
)

type fixture struct {
	uc     *UseCase
	tasks  *inmemory.TaskStorage
	actors *inmemory.ActorStorage
	ledger *budgetUC.Ledger
	now    time.Time
}

func newFixture(t *testing.T, allowance int) *fixture {
	t.Helper()

	tasks := inmemory.NewTaskStorage()
	actors := inmemory.NewActorStorage()
	ledger := budgetUC.New(inmemory.NewBudgetStorage(), allowance, nil)
	machine := NewMachine(NewCalculator(0.5, 2.0))

	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	uc := New(tasks, actors, ledger, machine, nil, nil).
		WithClock(func() time.Time { return now })

	f := &fixture{uc: uc, tasks: tasks, actors: actors, ledger: ledger, now: now}
	f.addActor(t, "owner-1", domain.RoleOwner)
	f.addActor(t, "mgr-1", domain.RoleManager)
	f.addActor(t, "staff-1", domain.RoleStaff)
	f.addActor(t, "staff-2", domain.RoleStaff)
	return f
}

func (f *fixture) addActor(t *testing.T, id string, roles ...domain.Role) {
	t.Helper()
	require.NoError(t, f.actors.Upsert(context.Background(), &domain.Actor{
		ID: id, Name: id, Roles: roles,
	}))
}

func (f *fixture) createTask(t *testing.T, assignerID string, base int) *domain.Task {
	t.Helper()
	created, err := f.uc.CreateTask(context.Background(), CreateInput{
		Title:      "deep clean fryer",
		Station:    domain.StationKitchen,
		DueAt:      f.now.Add(24 * time.Hour),
		BasePoints: base,
	}, assignerID)
	require.NoError(t, err)
	return created
}

func (f *fixture) pendingTask(t *testing.T, assignerID, assigneeID string, base int) *domain.Task {
	t.Helper()
	ctx := context.Background()
	created := f.createTask(t, assignerID, base)

	_, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, assigneeID)
	require.NoError(t, err)
	updated, err := f.uc.Transition(ctx, created.ID, IntentSubmitCompletion, Payload{}, assigneeID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingReview, updated.Status)
	return updated
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	valid := CreateInput{
		Title:      "wipe tables",
		Station:    domain.StationFront,
		DueAt:      f.now.Add(time.Hour),
		BasePoints: 5,
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{name: "empty title", mutate: func(in *CreateInput) { in.Title = "" }},
		{name: "unknown station", mutate: func(in *CreateInput) { in.Station = "garage" }},
		{name: "zero points", mutate: func(in *CreateInput) { in.BasePoints = 0 }},
		{name: "negative points", mutate: func(in *CreateInput) { in.BasePoints = -3 }},
		{name: "missing due date", mutate: func(in *CreateInput) { in.DueAt = time.Time{} }},
		{name: "unknown proof type", mutate: func(in *CreateInput) { in.ProofType = "video" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.uc.CreateTask(ctx, in, "mgr-1")
			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		})
	}

	t.Run("unknown assigner", func(t *testing.T) {
		_, err := f.uc.CreateTask(ctx, valid, "ghost")
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	})

	t.Run("valid input", func(t *testing.T) {
		created, err := f.uc.CreateTask(ctx, valid, "mgr-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOpen, created.Status)
		assert.Equal(t, domain.ProofNone, created.ProofType)
		assert.Equal(t, 1, created.Version)
	})
}

func TestApproveAwardsPointsAndSpendsBudget(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	pending := f.pendingTask(t, "mgr-1", "staff-1", 100)

	done, err := f.uc.Transition(ctx, pending.ID, IntentApprove,
		Payload{Multiplier: 1.5, Adjustment: 20}, "mgr-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, done.Status)
	require.NotNil(t, done.FinalPoints)
	assert.Equal(t, 170, *done.FinalPoints)

	remaining, err := f.uc.RemainingBudget(ctx, "mgr-1", f.now)
	require.NoError(t, err)
	assert.Equal(t, 30, remaining)
}

func TestApproveInsufficientBudgetLeavesTaskPending(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	first := f.pendingTask(t, "mgr-1", "staff-1", 100)
	second := f.pendingTask(t, "mgr-1", "staff-2", 80)

	_, err := f.uc.Transition(ctx, first.ID, IntentApprove,
		Payload{Multiplier: 1.5, Adjustment: 20}, "mgr-1")
	require.NoError(t, err)

	// 30 left for the day; a 40 point bonus must not go through.
	_, err = f.uc.Transition(ctx, second.ID, IntentApprove,
		Payload{Multiplier: 1.0, Adjustment: 40}, "mgr-1")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInsufficientBudget))

	reloaded, err := f.uc.GetTask(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, reloaded.Status)
	assert.Nil(t, reloaded.FinalPoints)

	remaining, err := f.uc.RemainingBudget(ctx, "mgr-1", f.now)
	require.NoError(t, err)
	assert.Equal(t, 30, remaining, "a failed reservation must not touch the balance")
}

func TestApproveWithoutAdjustmentIsFree(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	pending := f.pendingTask(t, "mgr-1", "staff-1", 100)

	done, err := f.uc.Transition(ctx, pending.ID, IntentApprove,
		Payload{Multiplier: 2.0}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, 200, *done.FinalPoints)

	remaining, err := f.uc.RemainingBudget(ctx, "mgr-1", f.now)
	require.NoError(t, err)
	assert.Equal(t, 50, remaining, "the multiplier draws nothing from the budget")
}

func TestOwnerClaimRule(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	t.Run("owner denied on manager task", func(t *testing.T) {
		created := f.createTask(t, "mgr-1", 10)
		_, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "owner-1")
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
	})

	t.Run("owner allowed on owner task", func(t *testing.T) {
		created := f.createTask(t, "owner-1", 10)
		claimed, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, claimed.Status)
	})

	t.Run("staff allowed on manager task", func(t *testing.T) {
		created := f.createTask(t, "mgr-1", 10)
		claimed, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-1")
		require.NoError(t, err)
		require.NotNil(t, claimed.AssigneeID)
		assert.Equal(t, "staff-1", *claimed.AssigneeID)
	})
}

func TestSweepIntentNotCallable(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 10)

	// Even with the deadline passed, the system transition is reserved
	// for the sweeper; callers get an invalid transition.
	f.uc.WithClock(func() time.Time { return f.now.Add(48 * time.Hour) })
	for _, actorID := range []string{"owner-1", "mgr-1", "staff-1"} {
		_, err := f.uc.Transition(ctx, created.ID, IntentSweep, Payload{}, actorID)
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidTransition))
	}

	got, err := f.uc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)

	swept, err := f.uc.RunOverdueSweep(ctx, f.now.Add(48*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}

// conflictingTasks wraps the in-memory repository and fails the first
// n Update calls with a version conflict, simulating concurrent writers.
type conflictingTasks struct {
	repository.TaskRepository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingTasks) Update(ctx context.Context, task *domain.Task) error {
	c.mu.Lock()
	c.calls++
	fail := c.conflicts > 0
	if fail {
		c.conflicts--
	}
	c.mu.Unlock()

	if fail {
		return domain.ErrVersionConflict
	}
	return c.TaskRepository.Update(ctx, task)
}

func TestTransitionRetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 10)

	wrapped := &conflictingTasks{TaskRepository: f.tasks, conflicts: 2}
	f.uc.tasks = wrapped

	claimed, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, claimed.Status)
	assert.Equal(t, 3, wrapped.calls, "two conflicted attempts plus the winning one")
}

func TestTransitionGivesUpAfterRetryBudget(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 10)
	f.uc.tasks = &conflictingTasks{TaskRepository: f.tasks, conflicts: 100}

	_, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-1")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
}

func TestConflictedApproveReleasesReservation(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	pending := f.pendingTask(t, "mgr-1", "staff-1", 100)
	f.uc.tasks = &conflictingTasks{TaskRepository: f.tasks, conflicts: 1}

	done, err := f.uc.Transition(ctx, pending.ID, IntentApprove,
		Payload{Multiplier: 1.0, Adjustment: 20}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, done.Status)

	remaining, err := f.uc.RemainingBudget(ctx, "mgr-1", f.now)
	require.NoError(t, err)
	assert.Equal(t, 30, remaining, "the conflicted attempt's reservation must be rolled back")
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 10)

	t.Run("assigner edits fields", func(t *testing.T) {
		title := "deep clean fryer and hood"
		station := domain.StationStore
		updated, err := f.uc.UpdateTask(ctx, created.ID, UpdateInput{
			Title:   &title,
			Station: &station,
		}, "mgr-1")
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.Equal(t, station, updated.Station)
	})

	t.Run("staff denied", func(t *testing.T) {
		title := "something else"
		_, err := f.uc.UpdateTask(ctx, created.ID, UpdateInput{Title: &title}, "staff-1")
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
	})

	t.Run("empty title rejected", func(t *testing.T) {
		title := ""
		_, err := f.uc.UpdateTask(ctx, created.ID, UpdateInput{Title: &title}, "mgr-1")
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	})
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	t.Run("assigner deletes open task", func(t *testing.T) {
		created := f.createTask(t, "mgr-1", 10)
		require.NoError(t, f.uc.DeleteTask(ctx, created.ID, "mgr-1"))
		_, err := f.uc.GetTask(ctx, created.ID)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	})

	t.Run("staff denied", func(t *testing.T) {
		created := f.createTask(t, "mgr-1", 10)
		err := f.uc.DeleteTask(ctx, created.ID, "staff-1")
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
	})

	t.Run("assigner denied once claimed", func(t *testing.T) {
		created := f.createTask(t, "mgr-1", 10)
		_, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-1")
		require.NoError(t, err)

		err = f.uc.DeleteTask(ctx, created.ID, "mgr-1")
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

		require.NoError(t, f.uc.DeleteTask(ctx, created.ID, "owner-1"))
	})
}

// recordingNotifier captures overdue notices for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	tasks []string
}

func (n *recordingNotifier) NotifyOverdue(ctx context.Context, task *domain.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task.ID)
	return nil
}

func TestOverdueSweep(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	notifier := &recordingNotifier{}
	f.uc.notifier = notifier

	dueTask := f.createTask(t, "mgr-1", 10)
	claimed := f.createTask(t, "mgr-1", 10)
	_, err := f.uc.Transition(ctx, claimed.ID, IntentClaim, Payload{}, "staff-1")
	require.NoError(t, err)
	futureTask, err := f.uc.CreateTask(ctx, CreateInput{
		Title:      "quarterly hood inspection",
		Station:    domain.StationKitchen,
		DueAt:      f.now.Add(30 * 24 * time.Hour),
		BasePoints: 40,
	}, "mgr-1")
	require.NoError(t, err)

	sweepAt := f.now.Add(25 * time.Hour)

	swept, err := f.uc.RunOverdueSweep(ctx, sweepAt, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	assert.ElementsMatch(t, []string{dueTask.ID, claimed.ID}, notifier.tasks)

	for _, id := range []string{dueTask.ID, claimed.ID} {
		got, err := f.uc.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOverdue, got.Status)
	}
	untouched, err := f.uc.GetTask(ctx, futureTask.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, untouched.Status)

	t.Run("rerun with the same clock is a no-op", func(t *testing.T) {
		again, err := f.uc.RunOverdueSweep(ctx, sweepAt, 100)
		require.NoError(t, err)
		assert.Zero(t, again)
		assert.Len(t, notifier.tasks, 2, "no duplicate notices")
	})

	t.Run("extend after sweep resumes work", func(t *testing.T) {
		extended, err := f.uc.Transition(ctx, claimed.ID, IntentExtend,
			Payload{NewDueAt: sweepAt.Add(48 * time.Hour)}, "mgr-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, extended.Status)
		assert.Zero(t, extended.OverdueDays)
	})
}

func TestOverdueDaysDerived(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 10)

	_, err := f.uc.RunOverdueSweep(ctx, f.now.Add(25*time.Hour), 100)
	require.NoError(t, err)

	// Reads three days past the deadline report three overdue days.
	f.uc.WithClock(func() time.Time { return f.now.Add(24*time.Hour + 72*time.Hour) })
	got, err := f.uc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	assert.Equal(t, 3, got.OverdueDays)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	created := f.createTask(t, "mgr-1", 60)

	claimed, err := f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Version)

	held, err := f.uc.Transition(ctx, created.ID, IntentPutOnHold, Payload{}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnHold, held.Status)

	resumed, err := f.uc.Transition(ctx, created.ID, IntentResume, Payload{}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, resumed.Status)

	submitted, err := f.uc.Transition(ctx, created.ID, IntentSubmitCompletion, Payload{}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, submitted.Status)

	rejected, err := f.uc.Transition(ctx, created.ID, IntentReject,
		Payload{Reason: "fryer basket still greasy"}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, rejected.Status)
	assert.Equal(t, "fryer basket still greasy", rejected.RejectionReason)

	resubmitted, err := f.uc.Transition(ctx, created.ID, IntentSubmitCompletion, Payload{}, "staff-1")
	require.NoError(t, err)
	assert.Empty(t, resubmitted.RejectionReason)

	done, err := f.uc.Transition(ctx, created.ID, IntentApprove,
		Payload{Multiplier: 1.0, Adjustment: 0}, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, done.Status)
	assert.Equal(t, 60, *done.FinalPoints)

	// Terminal: nothing moves a done task.
	_, err = f.uc.Transition(ctx, created.ID, IntentClaim, Payload{}, "staff-2")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidTransition))
}
