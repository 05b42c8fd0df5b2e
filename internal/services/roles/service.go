// Package roles implements role management for the admin console: custom
// role creation, grant editing, and deletion with the user-transfer contract.
// Every mutation is checked against the visibility policy before it touches
// the store, and every successful mutation invalidates resolved permission
// caches.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/asahina/tobira/internal/catalog"
	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
	"github.com/asahina/tobira/internal/services/authorization"
)

// InvalidTransferError rejects a role deletion whose user-transfer directive
// is missing or unusable.
type InvalidTransferError struct {
	Reason string
}

func (e *InvalidTransferError) Error() string {
	return "invalid user transfer: " + e.Reason
}

// ErrNotVisible is returned when the visibility policy denies the actor the
// role they tried to touch. The message is generic on purpose: a caller must
// not learn whether the role exists.
var ErrNotVisible = errors.New("insufficient permission")

// TransferDirective says what happens to principals still holding a role
// that is being deleted: either they all move to TargetRoleID, or the caller
// explicitly acknowledges they become role-less and fall back to the
// configured default role at resolution time.
type TransferDirective struct {
	TargetRoleID    string
	AllowUnassigned bool
}

// InvalidatorInterface is the slice of the cache invalidation protocol this
// service needs.
type InvalidatorInterface interface {
	InvalidatePrincipal(ctx context.Context, principalID string) error
	InvalidateAll(ctx context.Context) error
}

// Service implements role management operations.
type Service struct {
	catalog     *catalog.Catalog
	roles       repositories.RoleRepository
	principals  repositories.PrincipalRepository
	invalidator InvalidatorInterface
}

// NewService creates a new role management service.
func NewService(c *catalog.Catalog, roles repositories.RoleRepository, principals repositories.PrincipalRepository, invalidator InvalidatorInterface) *Service {
	return &Service{
		catalog:     c,
		roles:       roles,
		principals:  principals,
		invalidator: invalidator,
	}
}

// CreateInput describes a custom role to create.
type CreateInput struct {
	Name        string
	DisplayName string
	LayoutType  entities.PermissionType
	Permissions []string
}

// Create creates a custom role with the given grants. The actor may only
// grant permissions they hold themselves.
func (s *Service) Create(ctx context.Context, actor *entities.Principal, input CreateInput) (*entities.Role, error) {
	if err := s.checkGrantable(actor, input.Permissions); err != nil {
		return nil, err
	}

	role := &entities.Role{
		Name:        input.Name,
		DisplayName: input.DisplayName,
		IsActive:    true,
		LayoutType:  input.LayoutType,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	for _, name := range input.Permissions {
		if _, err := s.roles.EnsureGrant(ctx, role.ID, name); err != nil {
			return nil, fmt.Errorf("failed to grant %s: %w", name, err)
		}
	}

	return role, nil
}

// SetGrants replaces a role's grants with the given permission names. The
// actor needs manage visibility on the role and must hold every permission
// being granted. All resolved-set caches are invalidated on success.
func (s *Service) SetGrants(ctx context.Context, actor *entities.Principal, roleID string, permissions []string) error {
	_, grants, err := s.visibleForManage(ctx, actor, roleID)
	if err != nil {
		return err
	}
	if err := s.checkGrantable(actor, permissions); err != nil {
		return err
	}

	want := entities.NewPermissionSet(permissions...)
	for name := range grants {
		if !want.Has(name) {
			if err := s.roles.RevokeGrant(ctx, roleID, name); err != nil {
				return err
			}
		}
	}
	for name := range want {
		if !grants.Has(name) {
			if _, err := s.roles.EnsureGrant(ctx, roleID, name); err != nil {
				return err
			}
		}
	}

	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		log.Printf("failed to fan out invalidation after grant change on role %s: %v", roleID, err)
	}

	return nil
}

// AssignRole moves a principal to a different role and invalidates the
// principal's resolved set.
func (s *Service) AssignRole(ctx context.Context, actor *entities.Principal, principalID, roleID string) error {
	if _, _, err := s.visibleForManage(ctx, actor, roleID); err != nil {
		return err
	}

	if err := s.principals.SetRole(ctx, principalID, roleID); err != nil {
		return err
	}

	if err := s.invalidator.InvalidatePrincipal(ctx, principalID); err != nil {
		log.Printf("failed to fan out invalidation for principal %s: %v", principalID, err)
	}

	return nil
}

// Delete removes a role. A role that still owns principals requires a
// transfer directive: a valid, active target role different from the role
// being deleted, or an explicit acknowledgment that its principals become
// role-less. Nothing is mutated when the directive is invalid.
func (s *Service) Delete(ctx context.Context, actor *entities.Principal, roleID string, transfer *TransferDirective) error {
	role, _, err := s.visibleForManage(ctx, actor, roleID)
	if err != nil {
		return err
	}
	// Built-in roles belong to the reconciler; even the bypass role may not
	// delete them.
	if role.IsSystem {
		return entities.ErrRoleIsSystem
	}

	owned, err := s.principals.CountByRole(ctx, roleID)
	if err != nil {
		return err
	}

	if owned > 0 {
		target, err := s.validateTransfer(ctx, roleID, transfer)
		if err != nil {
			return err
		}
		if target != nil {
			moved, err := s.principals.ReassignRole(ctx, roleID, target.ID)
			if err != nil {
				return err
			}
			log.Printf("role %s deletion: moved %d principals to role %s", role.Name, moved, target.Name)
		}
	}

	if err := s.roles.Delete(ctx, roleID); err != nil {
		return err
	}

	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		log.Printf("failed to fan out invalidation after deleting role %s: %v", roleID, err)
	}

	return nil
}

// validateTransfer checks the directive and returns the target role, or nil
// when role-less principals were explicitly acknowledged.
func (s *Service) validateTransfer(ctx context.Context, roleID string, transfer *TransferDirective) (*entities.Role, error) {
	if transfer == nil {
		return nil, &InvalidTransferError{Reason: "role still has assigned users and no transfer directive was supplied"}
	}
	if transfer.TargetRoleID == "" {
		if transfer.AllowUnassigned {
			return nil, nil
		}
		return nil, &InvalidTransferError{Reason: "no target role supplied"}
	}
	if transfer.TargetRoleID == roleID {
		return nil, &InvalidTransferError{Reason: "target role is the role being deleted"}
	}

	target, err := s.roles.GetByID(ctx, transfer.TargetRoleID)
	if err != nil {
		if errors.Is(err, entities.ErrRoleNotFound) {
			return nil, &InvalidTransferError{Reason: "target role does not exist"}
		}
		return nil, err
	}
	if !target.IsActive {
		return nil, &InvalidTransferError{Reason: "target role is not active"}
	}

	return target, nil
}

// visibleForManage loads the role and its grants and applies the manage
// policy. Not-found and not-visible collapse into the same error.
func (s *Service) visibleForManage(ctx context.Context, actor *entities.Principal, roleID string) (*entities.Role, entities.PermissionSet, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, entities.ErrRoleNotFound) {
			return nil, nil, ErrNotVisible
		}
		return nil, nil, err
	}

	grants, err := s.roles.GrantedPermissions(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}

	if !authorization.CanManageRole(actor, role, grants) {
		return nil, nil, ErrNotVisible
	}

	return role, grants, nil
}

// checkGrantable verifies that every permission exists in the catalog and is
// held by the actor. A non-bypass actor may never hand out privilege beyond
// their own resolved set.
func (s *Service) checkGrantable(actor *entities.Principal, permissions []string) error {
	for _, name := range permissions {
		if _, ok := s.catalog.Find(name); !ok {
			return fmt.Errorf("unknown permission: %s", name)
		}
		if !actor.IsBypass() && !actor.Permissions.Has(name) {
			return ErrNotVisible
		}
	}
	return nil
}
