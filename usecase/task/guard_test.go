package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiftline/backend/domain"
)

func actorWith(id string, roles ...domain.Role) *domain.Actor {
	return &domain.Actor{ID: id, Name: id, Roles: roles}
}

func openTask(assignerID string) *domain.Task {
	return &domain.Task{
		ID:         "task-1",
		Title:      "restock napkins",
		Station:    domain.StationFront,
		Status:     domain.StatusOpen,
		AssignerID: assignerID,
		BasePoints: 10,
	}
}

func TestCanClaim(t *testing.T) {
	staff := actorWith("staff-1", domain.RoleStaff)
	manager := actorWith("mgr-1", domain.RoleManager)
	owner := actorWith("owner-1", domain.RoleOwner)
	otherOwner := actorWith("owner-2", domain.RoleOwner)

	t.Run("staff claims manager task", func(t *testing.T) {
		d := CanClaim(staff, manager, openTask(manager.ID))
		assert.True(t, d.Allowed)
	})

	t.Run("owner cannot claim manager task", func(t *testing.T) {
		d := CanClaim(owner, manager, openTask(manager.ID))
		assert.False(t, d.Allowed)
		assert.True(t, domain.IsDomainError(d.Err(), domain.ErrCodeForbidden))
	})

	t.Run("owner claims owner task", func(t *testing.T) {
		d := CanClaim(owner, otherOwner, openTask(otherOwner.ID))
		assert.True(t, d.Allowed)
	})

	t.Run("owner with unknown assigner denied", func(t *testing.T) {
		d := CanClaim(owner, nil, openTask("ghost"))
		assert.False(t, d.Allowed)
	})

	t.Run("non-open task", func(t *testing.T) {
		tk := openTask(manager.ID)
		tk.Status = domain.StatusInProgress
		d := CanClaim(staff, manager, tk)
		assert.False(t, d.Allowed)
	})
}

func TestCanSubmitCompletion(t *testing.T) {
	staff := actorWith("staff-1", domain.RoleStaff)
	other := actorWith("staff-2", domain.RoleStaff)

	tk := openTask("mgr-1")
	tk.Status = domain.StatusInProgress
	id := staff.ID
	tk.AssigneeID = &id

	assert.True(t, CanSubmitCompletion(staff, tk).Allowed)
	assert.False(t, CanSubmitCompletion(other, tk).Allowed)

	tk.Status = domain.StatusOpen
	assert.False(t, CanSubmitCompletion(staff, tk).Allowed)
}

func TestCanReview(t *testing.T) {
	assigner := actorWith("mgr-1", domain.RoleManager)
	otherManager := actorWith("mgr-2", domain.RoleHeadOfKitchen)
	staff := actorWith("staff-1", domain.RoleStaff)

	tk := openTask(assigner.ID)
	tk.Status = domain.StatusPendingReview

	assert.True(t, CanReview(assigner, tk).Allowed)
	assert.True(t, CanReview(otherManager, tk).Allowed)
	assert.False(t, CanReview(staff, tk).Allowed)
}

func TestCanHoldAndResume(t *testing.T) {
	manager := actorWith("mgr-1", domain.RoleFrontDeskManager)
	staff := actorWith("staff-1", domain.RoleStaff)

	tk := openTask(manager.ID)
	tk.Status = domain.StatusInProgress
	assert.True(t, CanHold(manager, tk).Allowed)
	assert.False(t, CanHold(staff, tk).Allowed)

	tk.Status = domain.StatusOnHold
	assert.True(t, CanResume(manager, tk).Allowed)
	assert.False(t, CanResume(staff, tk).Allowed)
}

func TestCanDelete(t *testing.T) {
	owner := actorWith("owner-1", domain.RoleOwner)
	assigner := actorWith("mgr-1", domain.RoleManager)
	staff := actorWith("staff-1", domain.RoleStaff)

	tk := openTask(assigner.ID)

	assert.True(t, CanDelete(owner, tk).Allowed)
	assert.True(t, CanDelete(assigner, tk).Allowed)
	assert.False(t, CanDelete(staff, tk).Allowed)

	// Once work started only an owner may delete.
	tk.Status = domain.StatusInProgress
	assert.True(t, CanDelete(owner, tk).Allowed)
	assert.False(t, CanDelete(assigner, tk).Allowed)
}

func TestCanResolveOverdue(t *testing.T) {
	assigner := actorWith("mgr-1", domain.RoleManager)
	otherManager := actorWith("mgr-2", domain.RoleManager)

	tk := openTask(assigner.ID)
	tk.Status = domain.StatusOverdue

	assert.True(t, CanResolveOverdue(assigner, tk).Allowed)
	assert.False(t, CanResolveOverdue(otherManager, tk).Allowed)

	tk.Status = domain.StatusOpen
	assert.False(t, CanResolveOverdue(assigner, tk).Allowed)
}
