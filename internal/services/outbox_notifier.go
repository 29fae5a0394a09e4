package services

import (
	"context"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/internal/infrastructure/outbox"
	"github.com/shiftline/backend/usecase"
)

// OutboxNotifier queues overdue notices into the durable outbox. It is
// the production implementation of the task use case's notifier port.
type OutboxNotifier struct {
	store *outbox.Store
}

func NewOutboxNotifier(store *outbox.Store) *OutboxNotifier {
	return &OutboxNotifier{store: store}
}

func (n *OutboxNotifier) NotifyOverdue(ctx context.Context, task *domain.Task) error {
	if n.store == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	notice := outbox.Notice{
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		AssignerID: task.AssignerID,
		DueAt:      task.DueAt,
	}
	if task.AssigneeID != nil {
		notice.AssigneeID = *task.AssigneeID
	}
	return n.store.Enqueue(notice)
}

var _ usecase.OverdueNotifier = (*OutboxNotifier)(nil)
