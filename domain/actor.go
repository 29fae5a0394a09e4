package domain

import "time"

// Role is one of the closed set of staff roles. Any role besides staff
// counts as management.
type Role string

const (
	RoleOwner            Role = "owner"
	RoleManager          Role = "manager"
	RoleHeadOfKitchen    Role = "head-of-kitchen"
	RoleFrontDeskManager Role = "front-desk-manager"
	RoleStaff            Role = "staff"
)

// ValidRole reports whether r belongs to the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleManager, RoleHeadOfKitchen, RoleFrontDeskManager, RoleStaff:
		return true
	}
	return false
}

// Actor is an authenticated party performing an action. Identity
// issuance happens outside this service; the directory only stores the
// stable id and the role set.
type Actor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole reports whether the actor carries the given role.
func (a *Actor) HasRole(role Role) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor carries at least one of the
// given roles.
func (a *Actor) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// IsOwner reports whether the actor carries the owner role.
func (a *Actor) IsOwner() bool {
	return a.HasRole(RoleOwner)
}

// IsManagement reports whether the actor carries any role other than
// plain staff.
func (a *Actor) IsManagement() bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r != RoleStaff {
			return true
		}
	}
	return false
}
