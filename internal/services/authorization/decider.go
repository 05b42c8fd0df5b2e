// Package authorization implements the decision engine: the pure allow/deny
// function, the access guard that wraps protected operations, and the
// visibility policy for role management.
package authorization

import (
	"github.com/asahina/tobira/internal/entities"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Missing string // Set on deny for an authenticated principal
}

// Decide is the pure decision function. No I/O, no side effects:
//
//   - inactive principals are denied,
//   - the bypass role is allowed unconditionally,
//   - everyone else is allowed iff the required permission is in their
//     resolved set.
func Decide(principal *entities.Principal, required string) Decision {
	if principal == nil || !principal.IsActive {
		return Decision{Allowed: false, Missing: required}
	}
	if principal.IsBypass() {
		return Decision{Allowed: true}
	}
	if principal.Permissions.Has(required) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Missing: required}
}
