package repositories

import (
	"context"

	"github.com/asahina/tobira/internal/entities"
)

// RoleRepository defines the interface for role and grant store access.
type RoleRepository interface {
	// GetByID retrieves a role by ID. Returns entities.ErrRoleNotFound if absent.
	GetByID(ctx context.Context, id string) (*entities.Role, error)

	// GetByName retrieves a role by name. Returns entities.ErrRoleNotFound if absent.
	GetByName(ctx context.Context, name string) (*entities.Role, error)

	// List returns all roles.
	List(ctx context.Context) ([]*entities.Role, error)

	// Create inserts a new role. Returns entities.ErrRoleDuplicate on a name clash.
	Create(ctx context.Context, role *entities.Role) error

	// Update overwrites display name, active flag, and layout type.
	Update(ctx context.Context, role *entities.Role) error

	// Delete removes a role and, by cascade, its grants.
	Delete(ctx context.Context, id string) error

	// UpsertSystem inserts a built-in role or reactivates/refreshes an existing
	// row by name, keeping the row ID stable. Used only by the reconciler.
	UpsertSystem(ctx context.Context, role *entities.Role) (*entities.Role, error)

	// EnsureGrant creates the (role, permission) grant row if it does not
	// exist. Existing rows are left untouched. Reports whether a row was created.
	EnsureGrant(ctx context.Context, roleID, permissionName string) (bool, error)

	// RevokeGrant removes the (role, permission) grant row.
	RevokeGrant(ctx context.Context, roleID, permissionName string) error

	// GrantedPermissions returns the names of the role's active, allowed grants.
	GrantedPermissions(ctx context.Context, roleID string) (entities.PermissionSet, error)
}
