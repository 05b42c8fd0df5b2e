package reconciler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/asahina/tobira/internal/catalog"
	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
)

// fakePermissionRepo is a stateful in-memory PermissionRepository.
type fakePermissionRepo struct {
	records map[string]*entities.PermissionRecord
	nextID  int
	failOn  string // permission name that makes Upsert fail
	writes  int
}

func newFakePermissionRepo() *fakePermissionRepo {
	return &fakePermissionRepo{records: make(map[string]*entities.PermissionRecord)}
}

func (f *fakePermissionRepo) Upsert(ctx context.Context, def *entities.PermissionDefinition) (*repositories.UpsertResult, error) {
	if def.Name == f.failOn {
		return nil, errors.New("store unavailable")
	}
	if existing, ok := f.records[def.Name]; ok {
		if reflect.DeepEqual(existing.Definition, *def) && existing.IsActive {
			return &repositories.UpsertResult{}, nil
		}
		existing.Definition = *def
		existing.IsActive = true
		f.writes++
		return &repositories.UpsertResult{Updated: true}, nil
	}
	f.nextID++
	f.records[def.Name] = &entities.PermissionRecord{
		ID:         fmt.Sprintf("perm-%d", f.nextID),
		Definition: *def,
		IsActive:   true,
	}
	f.writes++
	return &repositories.UpsertResult{Created: true}, nil
}

func (f *fakePermissionRepo) GetByName(ctx context.Context, name string) (*entities.PermissionRecord, error) {
	return f.records[name], nil
}

func (f *fakePermissionRepo) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	for name := range f.records {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakePermissionRepo) DeleteAbsent(ctx context.Context, keep []string) ([]string, error) {
	keepSet := entities.NewPermissionSet(keep...)
	var pruned []string
	for name := range f.records {
		if !keepSet.Has(name) {
			delete(f.records, name)
			pruned = append(pruned, name)
			f.writes++
		}
	}
	return pruned, nil
}

// fakeRoleRepo is a stateful in-memory RoleRepository.
type fakeRoleRepo struct {
	roles  map[string]*entities.Role // by name
	grants map[string]entities.PermissionSet
	nextID int
	writes int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:  make(map[string]*entities.Role),
		grants: make(map[string]entities.PermissionSet),
	}
}

func (f *fakeRoleRepo) GetByID(ctx context.Context, id string) (*entities.Role, error) {
	for _, role := range f.roles {
		if role.ID == id {
			return role, nil
		}
	}
	return nil, entities.ErrRoleNotFound
}

func (f *fakeRoleRepo) GetByName(ctx context.Context, name string) (*entities.Role, error) {
	role, ok := f.roles[name]
	if !ok {
		return nil, entities.ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeRoleRepo) List(ctx context.Context) ([]*entities.Role, error) {
	var roles []*entities.Role
	for _, role := range f.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (f *fakeRoleRepo) Create(ctx context.Context, role *entities.Role) error {
	if _, exists := f.roles[role.Name]; exists {
		return entities.ErrRoleDuplicate
	}
	f.nextID++
	role.ID = fmt.Sprintf("role-%d", f.nextID)
	f.roles[role.Name] = role
	f.grants[role.ID] = entities.NewPermissionSet()
	f.writes++
	return nil
}

func (f *fakeRoleRepo) Update(ctx context.Context, role *entities.Role) error {
	f.writes++
	return nil
}

func (f *fakeRoleRepo) Delete(ctx context.Context, id string) error {
	for name, role := range f.roles {
		if role.ID == id {
			delete(f.roles, name)
			delete(f.grants, id)
			f.writes++
			return nil
		}
	}
	return entities.ErrRoleNotFound
}

func (f *fakeRoleRepo) UpsertSystem(ctx context.Context, role *entities.Role) (*entities.Role, error) {
	if existing, ok := f.roles[role.Name]; ok {
		if existing.DisplayName != role.DisplayName || !existing.IsSystem || !existing.IsActive || existing.LayoutType != role.LayoutType {
			existing.DisplayName = role.DisplayName
			existing.IsSystem = true
			existing.IsActive = true
			existing.LayoutType = role.LayoutType
			f.writes++
		}
		return existing, nil
	}
	f.nextID++
	stored := &entities.Role{
		ID:          fmt.Sprintf("role-%d", f.nextID),
		Name:        role.Name,
		DisplayName: role.DisplayName,
		IsSystem:    true,
		IsActive:    true,
		LayoutType:  role.LayoutType,
	}
	f.roles[role.Name] = stored
	f.grants[stored.ID] = entities.NewPermissionSet()
	f.writes++
	return stored, nil
}

func (f *fakeRoleRepo) EnsureGrant(ctx context.Context, roleID, permissionName string) (bool, error) {
	set, ok := f.grants[roleID]
	if !ok {
		set = entities.NewPermissionSet()
		f.grants[roleID] = set
	}
	if set.Has(permissionName) {
		return false, nil
	}
	set.Add(permissionName)
	f.writes++
	return true, nil
}

func (f *fakeRoleRepo) RevokeGrant(ctx context.Context, roleID, permissionName string) error {
	delete(f.grants[roleID], permissionName)
	f.writes++
	return nil
}

func (f *fakeRoleRepo) GrantedPermissions(ctx context.Context, roleID string) (entities.PermissionSet, error) {
	set := entities.NewPermissionSet()
	for name := range f.grants[roleID] {
		set.Add(name)
	}
	return set, nil
}

// fakeInvalidator records fan-out calls.
type fakeInvalidator struct {
	allCalls int
	err      error
}

func (f *fakeInvalidator) InvalidateAll(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.allCalls++
	return nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		entities.NewLayoutPermission("admin", entities.TypeAdmin, nil, nil),
		entities.NewLayoutPermission("user", entities.TypeUser, nil, nil),
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
		entities.NewFunctionPermission("posts", entities.ActionCreate, entities.TypeAdmin, nil, nil),
		entities.NewViewPermission("user", "profile", entities.TypeUser, nil, nil),
	)
}

func TestReconciler_Run_FreshStore(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()
	rec := NewReconciler(testCatalog(), permRepo, roleRepo, nil)

	report, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.PermissionsCreated != 5 {
		t.Errorf("PermissionsCreated = %d, want 5", report.PermissionsCreated)
	}
	if report.PermissionsUpdated != 0 {
		t.Errorf("PermissionsUpdated = %d, want 0", report.PermissionsUpdated)
	}
	if len(report.Pruned) != 0 {
		t.Errorf("Pruned = %v, want none", report.Pruned)
	}

	// Built-in roles exist and hold their partitions.
	super, err := roleRepo.GetByName(context.Background(), entities.RoleSuperAdmin)
	if err != nil {
		t.Fatalf("super_admin missing: %v", err)
	}
	if !super.IsSystem {
		t.Error("super_admin must be a system role")
	}
	superGrants, _ := roleRepo.GrantedPermissions(context.Background(), super.ID)
	if len(superGrants) != 5 {
		t.Errorf("super_admin grants = %d, want all 5", len(superGrants))
	}

	admin, _ := roleRepo.GetByName(context.Background(), entities.RoleAdmin)
	adminGrants, _ := roleRepo.GrantedPermissions(context.Background(), admin.ID)
	if len(adminGrants) != 4 {
		t.Errorf("admin grants = %d, want the 4 admin-type permissions", len(adminGrants))
	}
	if adminGrants.Has("user.profile.view") {
		t.Error("admin partition must not include user-type permissions")
	}

	user, _ := roleRepo.GetByName(context.Background(), entities.RoleUser)
	userGrants, _ := roleRepo.GrantedPermissions(context.Background(), user.ID)
	if !userGrants.Has("user.layout") || !userGrants.Has("user.profile.view") || len(userGrants) != 2 {
		t.Errorf("user grants = %v, want the 2 user-type permissions", userGrants.Names())
	}
}

func TestReconciler_Run_Idempotent(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()
	rec := NewReconciler(testCatalog(), permRepo, roleRepo, nil)

	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	permWrites, roleWrites := permRepo.writes, roleRepo.writes

	report, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if report.PermissionsCreated != 0 || report.PermissionsUpdated != 0 || report.GrantsCreated != 0 || len(report.Pruned) != 0 {
		t.Errorf("second run should report all zeros, got %+v", report)
	}
	if permRepo.writes != permWrites || roleRepo.writes != roleWrites {
		t.Errorf("second run performed writes: permissions %d -> %d, roles %d -> %d",
			permWrites, permRepo.writes, roleWrites, roleRepo.writes)
	}
}

func TestReconciler_Run_StableIDsAcrossMetadataChange(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()

	first := catalog.New(
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin,
			map[string]string{"en": "View posts"}, nil),
	)
	if _, err := NewReconciler(first, permRepo, roleRepo, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	before := permRepo.records["admin.posts.view"].ID

	second := catalog.New(
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin,
			map[string]string{"en": "View posts", "ja": "記事一覧の閲覧"}, nil),
	)
	report, err := NewReconciler(second, permRepo, roleRepo, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.PermissionsUpdated != 1 || report.PermissionsCreated != 0 {
		t.Errorf("metadata change should update in place, got %+v", report)
	}
	if after := permRepo.records["admin.posts.view"].ID; after != before {
		t.Errorf("row ID changed across reconciliation: %s -> %s", before, after)
	}
}

func TestReconciler_Run_PrunesRemovedPermissions(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()

	if _, err := NewReconciler(testCatalog(), permRepo, roleRepo, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Remove posts.create from the catalog.
	shrunk := catalog.New(
		entities.NewLayoutPermission("admin", entities.TypeAdmin, nil, nil),
		entities.NewLayoutPermission("user", entities.TypeUser, nil, nil),
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
		entities.NewViewPermission("user", "profile", entities.TypeUser, nil, nil),
	)
	report, err := NewReconciler(shrunk, permRepo, roleRepo, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Pruned) != 1 || report.Pruned[0] != "posts.create" {
		t.Errorf("Pruned = %v, want [posts.create]", report.Pruned)
	}
	if _, ok := permRepo.records["posts.create"]; ok {
		t.Error("pruned permission still in store")
	}
}

func TestReconciler_Run_InvalidatesResolvedSets(t *testing.T) {
	t.Run("run with changes fans out a full invalidation", func(t *testing.T) {
		permRepo := newFakePermissionRepo()
		roleRepo := newFakeRoleRepo()
		invalidator := &fakeInvalidator{}

		if _, err := NewReconciler(testCatalog(), permRepo, roleRepo, invalidator).Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if invalidator.allCalls != 1 {
			t.Errorf("InvalidateAll calls = %d, want 1", invalidator.allCalls)
		}
	})

	t.Run("unchanged run does not invalidate", func(t *testing.T) {
		permRepo := newFakePermissionRepo()
		roleRepo := newFakeRoleRepo()
		invalidator := &fakeInvalidator{}
		rec := NewReconciler(testCatalog(), permRepo, roleRepo, invalidator)

		if _, err := rec.Run(context.Background()); err != nil {
			t.Fatalf("first Run() error = %v", err)
		}
		if _, err := rec.Run(context.Background()); err != nil {
			t.Fatalf("second Run() error = %v", err)
		}
		if invalidator.allCalls != 1 {
			t.Errorf("InvalidateAll calls = %d, want 1 (none for the unchanged run)", invalidator.allCalls)
		}
	})

	t.Run("prune-only run invalidates", func(t *testing.T) {
		permRepo := newFakePermissionRepo()
		roleRepo := newFakeRoleRepo()
		invalidator := &fakeInvalidator{}

		if _, err := NewReconciler(testCatalog(), permRepo, roleRepo, invalidator).Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		shrunk := catalog.New(
			entities.NewLayoutPermission("admin", entities.TypeAdmin, nil, nil),
			entities.NewLayoutPermission("user", entities.TypeUser, nil, nil),
			entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
			entities.NewViewPermission("user", "profile", entities.TypeUser, nil, nil),
		)
		report, err := NewReconciler(shrunk, permRepo, roleRepo, invalidator).Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(report.Pruned) != 1 {
			t.Fatalf("Pruned = %v, want one entry", report.Pruned)
		}
		if invalidator.allCalls != 2 {
			t.Errorf("InvalidateAll calls = %d, want 2 (one per changing run)", invalidator.allCalls)
		}
	})

	t.Run("fan-out failure surfaces as a reconciliation error", func(t *testing.T) {
		permRepo := newFakePermissionRepo()
		roleRepo := newFakeRoleRepo()
		invalidator := &fakeInvalidator{err: errors.New("notify failed")}

		_, err := NewReconciler(testCatalog(), permRepo, roleRepo, invalidator).Run(context.Background())
		var recErr *ReconciliationError
		if !errors.As(err, &recErr) {
			t.Fatalf("error type = %T, want *ReconciliationError", err)
		}
		if recErr.Step != "invalidate resolved sets" {
			t.Errorf("Step = %q, want the invalidation step", recErr.Step)
		}
	})
}

func TestReconciler_Run_PreservesCustomRoles(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()
	rec := NewReconciler(testCatalog(), permRepo, roleRepo, nil)

	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	custom := &entities.Role{Name: "editor", DisplayName: "Editor", IsActive: true, LayoutType: entities.TypeAdmin}
	if err := roleRepo.Create(context.Background(), custom); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := roleRepo.EnsureGrant(context.Background(), custom.ID, "admin.posts.view"); err != nil {
		t.Fatalf("EnsureGrant() error = %v", err)
	}

	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if _, err := roleRepo.GetByName(context.Background(), "editor"); err != nil {
		t.Errorf("custom role should survive reconciliation: %v", err)
	}
	grants, _ := roleRepo.GrantedPermissions(context.Background(), custom.ID)
	if !grants.Has("admin.posts.view") {
		t.Error("custom role grants should survive reconciliation")
	}
}

func TestReconciler_Run_WrapsStoreFailures(t *testing.T) {
	permRepo := newFakePermissionRepo()
	permRepo.failOn = "admin.posts.view"
	roleRepo := newFakeRoleRepo()
	rec := NewReconciler(testCatalog(), permRepo, roleRepo, nil)

	_, err := rec.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when the store does")
	}

	var recErr *ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("error type = %T, want *ReconciliationError", err)
	}
	if recErr.Step != "upsert permission admin.posts.view" {
		t.Errorf("Step = %q, want the failing step", recErr.Step)
	}
}

func TestReconciler_Drift(t *testing.T) {
	permRepo := newFakePermissionRepo()
	roleRepo := newFakeRoleRepo()
	c := testCatalog()

	if _, err := NewReconciler(c, permRepo, roleRepo, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	t.Run("in sync", func(t *testing.T) {
		missing, orphaned, err := NewReconciler(c, permRepo, roleRepo, nil).Drift(context.Background())
		if err != nil {
			t.Fatalf("Drift() error = %v", err)
		}
		if len(missing) != 0 || len(orphaned) != 0 {
			t.Errorf("Drift() = missing %v, orphaned %v, want none", missing, orphaned)
		}
	})

	t.Run("drift both ways", func(t *testing.T) {
		grown := catalog.New(
			entities.NewLayoutPermission("admin", entities.TypeAdmin, nil, nil),
			entities.NewLayoutPermission("user", entities.TypeUser, nil, nil),
			entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
			entities.NewViewPermission("user", "profile", entities.TypeUser, nil, nil),
			// posts.create dropped, dealers.view added
			entities.NewViewPermission("admin", "dealers", entities.TypeAdmin, nil, nil),
		)

		missing, orphaned, err := NewReconciler(grown, permRepo, roleRepo, nil).Drift(context.Background())
		if err != nil {
			t.Fatalf("Drift() error = %v", err)
		}
		if len(missing) != 1 || missing[0] != "admin.dealers.view" {
			t.Errorf("missing = %v, want [admin.dealers.view]", missing)
		}
		if len(orphaned) != 1 || orphaned[0] != "posts.create" {
			t.Errorf("orphaned = %v, want [posts.create]", orphaned)
		}
	})
}
