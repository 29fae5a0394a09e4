package domain

import (
	"encoding/json"
	"time"
)

// Status is the closed set of task lifecycle states. All movement
// between statuses goes through the state machine in usecase/task.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInProgress    Status = "in-progress"
	StatusOnHold        Status = "on-hold"
	StatusPendingReview Status = "pending-review"
	StatusOverdue       Status = "overdue"
	StatusDone          Status = "done"
)

// ValidStatus reports whether s belongs to the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusOnHold, StatusPendingReview, StatusOverdue, StatusDone:
		return true
	}
	return false
}

// Station identifies the restaurant area a task belongs to.
type Station string

const (
	StationKitchen Station = "kitchen"
	StationFront   Station = "front"
	StationStore   Station = "store"
	StationOutdoor Station = "outdoor"
)

// ValidStation reports whether s belongs to the closed station set.
func ValidStation(s Station) bool {
	switch s {
	case StationKitchen, StationFront, StationStore, StationOutdoor:
		return true
	}
	return false
}

// ProofType declares what evidence a task requires before it can be
// submitted for review.
type ProofType string

const (
	ProofNone      ProofType = "none"
	ProofPhoto     ProofType = "photo"
	ProofText      ProofType = "text"
	ProofChecklist ProofType = "checklist"
)

// ValidProofType reports whether p belongs to the closed proof set.
func ValidProofType(p ProofType) bool {
	switch p {
	case ProofNone, ProofPhoto, ProofText, ProofChecklist:
		return true
	}
	return false
}

// Task is the central entity of the task lifecycle. Version is the unit
// of optimistic concurrency: every write is conditioned on the version
// that was read, and bumps it by one.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Station     Station   `json:"station"`
	Status      Status    `json:"status"`
	DueAt       time.Time `json:"due_at"`

	// BasePoints is set at creation and immutable afterward.
	BasePoints int `json:"base_points"`

	AssignerID string  `json:"assigner_id"`
	AssigneeID *string `json:"assignee_id,omitempty"`

	ProofType ProofType       `json:"proof_type"`
	ProofData json.RawMessage `json:"proof_data,omitempty"`

	// Repeat is an opaque recurrence descriptor. The core stores it
	// untouched; materialization happens elsewhere.
	Repeat json.RawMessage `json:"repeat,omitempty"`

	// Approval outcome. Set only when the task reaches done via approve.
	FinalPoints *int     `json:"final_points,omitempty"`
	Multiplier  *float64 `json:"multiplier,omitempty"`
	Adjustment  *int     `json:"adjustment,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`

	// OverdueDays is derived on read while the task is overdue; it is
	// never persisted.
	OverdueDays int `json:"overdue_days,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the task has reached its final state.
func (t *Task) IsTerminal() bool {
	return t != nil && t.Status == StatusDone
}

// Assigned reports whether the task currently has an assignee.
func (t *Task) Assigned() bool {
	return t != nil && t.AssigneeID != nil && *t.AssigneeID != ""
}

// AssignedTo reports whether the task is currently assigned to actorID.
func (t *Task) AssignedTo(actorID string) bool {
	return t.Assigned() && *t.AssigneeID == actorID
}

// RecomputeOverdueDays refreshes the derived OverdueDays field. The
// value is non-zero only while the task is overdue.
func (t *Task) RecomputeOverdueDays(now time.Time) {
	if t == nil {
		return
	}
	if t.Status != StatusOverdue || !now.After(t.DueAt) {
		t.OverdueDays = 0
		return
	}
	t.OverdueDays = int(now.Sub(t.DueAt) / (24 * time.Hour))
}

// RequiresProof reports whether a completion submission must carry
// proof data.
func (t *Task) RequiresProof() bool {
	return t != nil && t.ProofType != ProofNone && t.ProofType != ""
}
