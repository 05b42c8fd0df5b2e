package repositories

import (
	"context"

	"github.com/asahina/tobira/internal/entities"
)

// PrincipalRepository defines the interface for principal store access.
type PrincipalRepository interface {
	// GetByID retrieves a principal (without resolved permissions). Returns
	// entities.ErrPrincipalNotFound if absent.
	GetByID(ctx context.Context, id string) (*entities.Principal, error)

	// CountByRole returns how many principals currently hold the role.
	CountByRole(ctx context.Context, roleID string) (int, error)

	// SetRole assigns a single principal to a role. Returns
	// entities.ErrPrincipalNotFound if the principal does not exist.
	SetRole(ctx context.Context, principalID, roleID string) error

	// ReassignRole moves every principal from one role to another. Returns the
	// number of principals moved.
	ReassignRole(ctx context.Context, fromRoleID, toRoleID string) (int64, error)

	// ResolvePermissions computes the principal's permission set: the union of
	// names from the active, allowed grants of the principal's role.
	ResolvePermissions(ctx context.Context, principalID string) (entities.PermissionSet, error)
}

// SessionRepository resolves a transport credential to a principal. Session
// issuance lives outside this service; only the lookup is consumed here.
type SessionRepository interface {
	// GetPrincipalByToken returns the principal for a session token, or
	// entities.ErrNoSession if the token is unknown or expired.
	GetPrincipalByToken(ctx context.Context, token string) (*entities.Principal, error)
}
