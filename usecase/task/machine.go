package task

import (
	"encoding/json"
	"time"

	"github.com/shiftline/backend/domain"
)

// Intent names a requested lifecycle transition.
type Intent string

const (
	IntentClaim            Intent = "claim"
	IntentSubmitCompletion Intent = "submit-completion"
	IntentApprove          Intent = "approve"
	IntentReject           Intent = "reject"
	IntentPutOnHold        Intent = "put-on-hold"
	IntentResume           Intent = "resume"
	IntentExtend           Intent = "extend"
	IntentReassign         Intent = "reassign"
	IntentCancel           Intent = "cancel"

	// IntentSweep is the synthetic system intent issued by the overdue
	// sweeper; it carries no actor.
	IntentSweep Intent = "overdue-sweep"
)

// Payload carries the intent-specific inputs of a transition. Unused
// fields are ignored by intents that do not read them.
type Payload struct {
	// Approve.
	Multiplier float64
	Adjustment int

	// Reject.
	Reason string

	// Extend.
	NewDueAt time.Time

	// Submit completion.
	Proof json.RawMessage
}

// Machine validates and applies every status transition. Its table is
// the single source of truth for which (status, intent) pairs are
// legal; anything else is an invalid transition. Apply mutates the
// given task in place and returns the budget cost the transition
// carries, non-zero only for approvals with an adjustment. The caller
// reserves that cost before committing the task write.
type Machine struct {
	calc Calculator
}

// NewMachine builds a state machine around the given calculator.
func NewMachine(calc Calculator) *Machine {
	return &Machine{calc: calc}
}

type transitionFunc func(m *Machine, t *domain.Task, actor, assigner *domain.Actor, p Payload, now time.Time) (int, error)

// table maps (current status, intent) to its transition. Guards and
// payload validation run inside the transition funcs, so a denied or
// invalid request leaves the task untouched.
var table = map[domain.Status]map[Intent]transitionFunc{
	domain.StatusOpen: {
		IntentClaim: (*Machine).claim,
		IntentSweep: (*Machine).sweep,
	},
	domain.StatusInProgress: {
		IntentSubmitCompletion: (*Machine).submitCompletion,
		IntentPutOnHold:        (*Machine).putOnHold,
		IntentSweep:            (*Machine).sweep,
	},
	domain.StatusOnHold: {
		IntentResume: (*Machine).resume,
		IntentSweep:  (*Machine).sweep,
	},
	domain.StatusPendingReview: {
		IntentApprove: (*Machine).approve,
		IntentReject:  (*Machine).reject,
	},
	domain.StatusOverdue: {
		IntentExtend:   (*Machine).extend,
		IntentReassign: (*Machine).reassign,
		IntentCancel:   (*Machine).cancel,
	},
}

// Apply runs the transition for (t.Status, intent). The returned cost
// is the amount the approver's daily budget must cover.
func (m *Machine) Apply(t *domain.Task, intent Intent, actor, assigner *domain.Actor, p Payload, now time.Time) (int, error) {
	byIntent, ok := table[t.Status]
	if !ok {
		return 0, domain.NewInvalidTransition(t.Status, string(intent))
	}
	fn, ok := byIntent[intent]
	if !ok {
		return 0, domain.NewInvalidTransition(t.Status, string(intent))
	}
	return fn(m, t, actor, assigner, p, now)
}

func (m *Machine) claim(t *domain.Task, actor, assigner *domain.Actor, _ Payload, _ time.Time) (int, error) {
	if err := CanClaim(actor, assigner, t).Err(); err != nil {
		return 0, err
	}
	id := actor.ID
	t.AssigneeID = &id
	t.Status = domain.StatusInProgress
	return 0, nil
}

func (m *Machine) sweep(t *domain.Task, _, _ *domain.Actor, _ Payload, now time.Time) (int, error) {
	// System transition, no guard. Only past-due tasks move.
	if !t.DueAt.Before(now) {
		return 0, domain.NewValidationError("due_at", "deadline has not passed")
	}
	m.leaveInProgress(t)
	t.Status = domain.StatusOverdue
	return 0, nil
}

func (m *Machine) submitCompletion(t *domain.Task, actor, _ *domain.Actor, p Payload, now time.Time) (int, error) {
	if err := CanSubmitCompletion(actor, t).Err(); err != nil {
		return 0, err
	}
	if t.RequiresProof() && len(p.Proof) == 0 {
		return 0, domain.NewValidationError("proof", "proof of type "+string(t.ProofType)+" is required")
	}
	m.leaveInProgress(t)
	t.ProofData = p.Proof
	completed := now
	t.CompletedAt = &completed
	t.Status = domain.StatusPendingReview
	return 0, nil
}

func (m *Machine) putOnHold(t *domain.Task, actor, _ *domain.Actor, _ Payload, _ time.Time) (int, error) {
	if err := CanHold(actor, t).Err(); err != nil {
		return 0, err
	}
	// On-hold retains the last assignee.
	m.leaveInProgress(t)
	t.Status = domain.StatusOnHold
	return 0, nil
}

func (m *Machine) resume(t *domain.Task, actor, _ *domain.Actor, _ Payload, _ time.Time) (int, error) {
	if err := CanResume(actor, t).Err(); err != nil {
		return 0, err
	}
	t.Status = domain.StatusInProgress
	return 0, nil
}

func (m *Machine) approve(t *domain.Task, actor, _ *domain.Actor, p Payload, now time.Time) (int, error) {
	if err := CanReview(actor, t).Err(); err != nil {
		return 0, err
	}
	if err := m.calc.ValidateMultiplier(p.Multiplier); err != nil {
		return 0, err
	}

	final := m.calc.FinalPoints(t.BasePoints, p.Multiplier, p.Adjustment)
	multiplier := p.Multiplier
	adjustment := p.Adjustment
	approved := now

	t.FinalPoints = &final
	t.Multiplier = &multiplier
	t.Adjustment = &adjustment
	t.ApprovedAt = &approved
	t.Status = domain.StatusDone

	// Only the flat adjustment draws from the approver's daily pool;
	// the multiplier portion is free.
	cost := p.Adjustment
	if cost < 0 {
		cost = -cost
	}
	return cost, nil
}

func (m *Machine) reject(t *domain.Task, actor, _ *domain.Actor, p Payload, _ time.Time) (int, error) {
	if err := CanReview(actor, t).Err(); err != nil {
		return 0, err
	}
	if p.Reason == "" {
		return 0, domain.NewValidationError("reason", "rejection reason must not be empty")
	}
	t.RejectionReason = p.Reason
	t.Status = domain.StatusInProgress
	return 0, nil
}

func (m *Machine) extend(t *domain.Task, actor, _ *domain.Actor, p Payload, now time.Time) (int, error) {
	if err := CanResolveOverdue(actor, t).Err(); err != nil {
		return 0, err
	}
	if p.NewDueAt.IsZero() || !p.NewDueAt.After(now) {
		return 0, domain.NewValidationError("new_due_at", "must be in the future")
	}
	t.DueAt = p.NewDueAt
	// A task that went overdue before anyone claimed it has no assignee
	// to hand the extension to; it reopens for claiming instead.
	if t.Assigned() {
		t.Status = domain.StatusInProgress
	} else {
		t.Status = domain.StatusOpen
	}
	return 0, nil
}

func (m *Machine) reassign(t *domain.Task, actor, _ *domain.Actor, _ Payload, _ time.Time) (int, error) {
	if err := CanResolveOverdue(actor, t).Err(); err != nil {
		return 0, err
	}
	t.AssigneeID = nil
	t.Status = domain.StatusOpen
	return 0, nil
}

func (m *Machine) cancel(t *domain.Task, actor, _ *domain.Actor, _ Payload, _ time.Time) (int, error) {
	if err := CanResolveOverdue(actor, t).Err(); err != nil {
		return 0, err
	}
	zero := 0
	t.FinalPoints = &zero
	t.Status = domain.StatusDone
	return 0, nil
}

// leaveInProgress clears carried-over review state when a task exits
// in-progress by any path other than rejection.
func (m *Machine) leaveInProgress(t *domain.Task) {
	if t.Status == domain.StatusInProgress {
		t.RejectionReason = ""
	}
}
