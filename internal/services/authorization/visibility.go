package authorization

import (
	"github.com/asahina/tobira/internal/entities"
)

// The visibility policy decides whether a principal may see or manage a role,
// independently of whether they can reach the role-management screen at all.
// Both checks compare resolved permission sets: a principal may never see or
// grant more privilege than they hold.

// CanViewRole reports whether the principal may view the role. grants is the
// role's granted permission set.
//
// System roles are viewable by anyone who reached the screen. Non-system
// roles are visible only when the role's set is contained in the principal's
// own resolved set.
func CanViewRole(principal *entities.Principal, role *entities.Role, grants entities.PermissionSet) bool {
	if principal == nil || role == nil {
		return false
	}
	if principal.IsBypass() {
		return true
	}
	if role.IsSystem {
		return true
	}
	return covers(principal.Permissions, grants)
}

// CanManageRole reports whether the principal may edit or delete the role.
//
// Only the bypass role may touch system roles. A principal may never manage
// the role they currently hold (self-escalation prevention), nor any role
// whose permission set is not contained in their own.
func CanManageRole(principal *entities.Principal, role *entities.Role, grants entities.PermissionSet) bool {
	if principal == nil || role == nil {
		return false
	}
	if principal.IsBypass() {
		return true
	}
	if role.IsSystem {
		return false
	}
	if principal.RoleID == role.ID {
		return false
	}
	return covers(principal.Permissions, grants)
}

// covers reports whether have contains every permission in want and is at
// least as large.
func covers(have, want entities.PermissionSet) bool {
	if len(want) > len(have) {
		return false
	}
	return have.IsSupersetOf(want)
}
