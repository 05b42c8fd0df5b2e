// Package reconciler aligns the persistent authorization store with the
// code-first permission catalog. It runs at deploy time, is idempotent, and
// never disturbs custom roles or grants that remain valid.
package reconciler

import (
	"context"
	"fmt"
	"log"

	"github.com/asahina/tobira/internal/catalog"
	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
)

// ReconciliationError reports a store write failure mid-run. Every step is
// individually idempotent, so a failed run leaves no corruption and can be
// retried as a whole.
type ReconciliationError struct {
	Step string
	Err  error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed at %s: %v", e.Step, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// Report summarizes what a run changed. A second run against an unchanged
// catalog reports all zeros.
type Report struct {
	PermissionsCreated int
	PermissionsUpdated int
	GrantsCreated      int
	Pruned             []string
}

// Changed reports whether the run wrote anything to the store.
func (r *Report) Changed() bool {
	return r.PermissionsCreated > 0 || r.PermissionsUpdated > 0 ||
		r.GrantsCreated > 0 || len(r.Pruned) > 0
}

// InvalidatorInterface is the slice of the cache invalidation protocol this
// service needs. Permission definitions are inputs to every resolved set, so
// a run that changed anything must invalidate all of them at once.
type InvalidatorInterface interface {
	InvalidateAll(ctx context.Context) error
}

// builtinRole pairs a built-in role with its permission partition.
type builtinRole struct {
	name        string
	displayName string
	layoutType  entities.PermissionType
	partition   func(c *catalog.Catalog) []*entities.PermissionDefinition
}

var builtinRoles = []builtinRole{
	{
		name:        entities.RoleSuperAdmin,
		displayName: "Super Administrator",
		layoutType:  entities.TypeAdmin,
		partition:   func(c *catalog.Catalog) []*entities.PermissionDefinition { return c.ListAll() },
	},
	{
		name:        entities.RoleAdmin,
		displayName: "Administrator",
		layoutType:  entities.TypeAdmin,
		partition: func(c *catalog.Catalog) []*entities.PermissionDefinition {
			return c.ByType(entities.TypeAdmin)
		},
	},
	{
		name:        entities.RoleUser,
		displayName: "User",
		layoutType:  entities.TypeUser,
		partition: func(c *catalog.Catalog) []*entities.PermissionDefinition {
			return c.ByType(entities.TypeUser)
		},
	},
}

// Reconciler synchronizes the store with the catalog.
type Reconciler struct {
	catalog     *catalog.Catalog
	permissions repositories.PermissionRepository
	roles       repositories.RoleRepository
	invalidator InvalidatorInterface // nil when no cache consumers exist yet
}

// NewReconciler creates a new Reconciler. invalidator may be nil, but any
// process serving decisions from cached resolved sets must supply one.
func NewReconciler(c *catalog.Catalog, permissions repositories.PermissionRepository, roles repositories.RoleRepository, invalidator InvalidatorInterface) *Reconciler {
	return &Reconciler{
		catalog:     c,
		permissions: permissions,
		roles:       roles,
		invalidator: invalidator,
	}
}

// Run executes one reconciliation pass:
//
//  1. upsert every catalog permission by name, keeping stored IDs stable;
//  2. upsert the three built-in roles and ensure each holds its partition of
//     the catalog, leaving existing grant rows untouched;
//  3. prune stored permissions absent from the catalog, cascading their
//     grant rows. Custom roles themselves are never pruned.
//
// Running it again with an unchanged catalog performs zero writes.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	for _, def := range r.catalog.ListAll() {
		result, err := r.permissions.Upsert(ctx, def)
		if err != nil {
			return nil, &ReconciliationError{Step: "upsert permission " + def.Name, Err: err}
		}
		if result.Created {
			report.PermissionsCreated++
		}
		if result.Updated {
			report.PermissionsUpdated++
		}
	}

	for _, builtin := range builtinRoles {
		role, err := r.roles.UpsertSystem(ctx, &entities.Role{
			Name:        builtin.name,
			DisplayName: builtin.displayName,
			LayoutType:  builtin.layoutType,
		})
		if err != nil {
			return nil, &ReconciliationError{Step: "upsert role " + builtin.name, Err: err}
		}

		for _, def := range builtin.partition(r.catalog) {
			created, err := r.roles.EnsureGrant(ctx, role.ID, def.Name)
			if err != nil {
				return nil, &ReconciliationError{Step: fmt.Sprintf("grant %s to %s", def.Name, builtin.name), Err: err}
			}
			if created {
				report.GrantsCreated++
			}
		}
	}

	pruned, err := r.permissions.DeleteAbsent(ctx, r.catalog.Names())
	if err != nil {
		return nil, &ReconciliationError{Step: "prune permissions", Err: err}
	}
	report.Pruned = pruned

	log.Printf("reconcile: %d permissions created, %d updated, %d grants created, %d pruned",
		report.PermissionsCreated, report.PermissionsUpdated, report.GrantsCreated, len(report.Pruned))

	// Cached resolved sets may still contain pruned permissions or miss new
	// grants; every consumer must recompute before the next decision.
	if report.Changed() && r.invalidator != nil {
		if err := r.invalidator.InvalidateAll(ctx); err != nil {
			return report, &ReconciliationError{Step: "invalidate resolved sets", Err: err}
		}
	}

	return report, nil
}

// Drift compares the store against the catalog without writing. It returns
// the catalog names missing from the store and the stored names absent from
// the catalog.
func (r *Reconciler) Drift(ctx context.Context) (missing, orphaned []string, err error) {
	stored, err := r.permissions.ListNames(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list stored permissions: %w", err)
	}

	storedSet := entities.NewPermissionSet(stored...)
	for _, name := range r.catalog.Names() {
		if !storedSet.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, name := range stored {
		if _, ok := r.catalog.Find(name); !ok {
			orphaned = append(orphaned, name)
		}
	}

	return missing, orphaned, nil
}
