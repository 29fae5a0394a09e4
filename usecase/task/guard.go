package task

import (
	"github.com/shiftline/backend/domain"
)

// Decision is the outcome of a capability check: whether the intent is
// allowed and, if not, a human-readable denial reason.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into a domain error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.NewForbidden(d.Reason)
}

// CanClaim checks whether actor may take ownership of an open task.
// Owners may only claim tasks created by other owners; this keeps them
// from picking up staff-assigned work. The assigner's role set is
// looked up by the caller and may be nil when the assigner is unknown.
func CanClaim(actor, assigner *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusOpen {
		return deny("only open tasks can be claimed")
	}
	if actor.IsOwner() && !assigner.IsOwner() {
		return deny("owner can only claim owner-created tasks")
	}
	return allow()
}

// CanSubmitCompletion checks whether actor may submit the task for review.
func CanSubmitCompletion(actor *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusInProgress {
		return deny("only in-progress tasks can be submitted for review")
	}
	if !t.AssignedTo(actor.ID) {
		return deny("only the current assignee can submit completion")
	}
	return allow()
}

// CanReview checks whether actor may approve or reject a pending task.
func CanReview(actor *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusPendingReview {
		return deny("task is not pending review")
	}
	if actor.ID != t.AssignerID && !actor.IsManagement() {
		return deny("only the assigner or management can review this task")
	}
	return allow()
}

// CanHold checks whether actor may pause an in-progress task.
func CanHold(actor *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusInProgress {
		return deny("only in-progress tasks can be put on hold")
	}
	if !actor.IsManagement() {
		return deny("only management can put a task on hold")
	}
	return allow()
}

// CanResume checks whether actor may resume an on-hold task.
func CanResume(actor *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusOnHold {
		return deny("task is not on hold")
	}
	if !actor.IsManagement() {
		return deny("only management can resume a task")
	}
	return allow()
}

// CanEdit checks whether actor may change a task's editable fields.
func CanEdit(actor *domain.Actor, t *domain.Task) Decision {
	if actor.IsManagement() || actor.ID == t.AssignerID {
		return allow()
	}
	return deny("only management or the assigner can edit this task")
}

// CanDelete checks whether actor may remove the task entirely.
func CanDelete(actor *domain.Actor, t *domain.Task) Decision {
	if actor.IsOwner() {
		return allow()
	}
	if t.Status == domain.StatusOpen && actor.ID == t.AssignerID {
		return allow()
	}
	return deny("only an owner, or the assigner of an open task, can delete it")
}

// CanResolveOverdue checks whether actor may extend, reassign or cancel
// an overdue task. All three resolutions belong to the original assigner.
func CanResolveOverdue(actor *domain.Actor, t *domain.Task) Decision {
	if t.Status != domain.StatusOverdue {
		return deny("task is not overdue")
	}
	if actor.ID != t.AssignerID {
		return deny("only the assigner can resolve an overdue task")
	}
	return allow()
}
