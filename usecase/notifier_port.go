package usecase

import (
	"context"

	"github.com/shiftline/backend/domain"
)

// OverdueNotifier abstracts the notification outbox so the task use
// case stays storage-agnostic. Implementations queue a notice for the
// task's assigner; delivery happens out of band.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, task *domain.Task) error
}
