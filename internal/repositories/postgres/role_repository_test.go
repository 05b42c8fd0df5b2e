package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/asahina/tobira/internal/entities"
)

func TestRoleRepository_Create(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRoleRepository(db)
	ctx := context.Background()

	t.Run("正常系: カスタムロール作成", func(t *testing.T) {
		role := &entities.Role{
			Name:        "editor",
			DisplayName: "Editor",
			IsActive:    true,
			LayoutType:  entities.TypeAdmin,
		}

		if err := repo.Create(ctx, role); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if role.ID == "" {
			t.Error("Expected generated role ID")
		}

		stored, err := repo.GetByName(ctx, "editor")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if stored.IsSystem {
			t.Error("Custom role must not be a system role")
		}
	})

	t.Run("異常系: 名前重複", func(t *testing.T) {
		role := &entities.Role{Name: "editor", DisplayName: "Another editor", IsActive: true, LayoutType: entities.TypeAdmin}

		err := repo.Create(ctx, role)
		if !errors.Is(err, entities.ErrRoleDuplicate) {
			t.Errorf("Expected ErrRoleDuplicate, got: %v", err)
		}
	})

	t.Run("異常系: 空の名前", func(t *testing.T) {
		role := &entities.Role{Name: "   "}

		err := repo.Create(ctx, role)
		if !errors.Is(err, entities.ErrRoleNameEmpty) {
			t.Errorf("Expected ErrRoleNameEmpty, got: %v", err)
		}
	})
}

func TestRoleRepository_GetAndUpdate(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRoleRepository(db)
	ctx := context.Background()

	role := &entities.Role{Name: "moderator", DisplayName: "Moderator", IsActive: true, LayoutType: entities.TypeUser}
	if err := repo.Create(ctx, role); err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}

	t.Run("正常系: IDで取得", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, role.ID)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if stored.Name != "moderator" || stored.LayoutType != entities.TypeUser {
			t.Errorf("Unexpected role: %+v", stored)
		}
	})

	t.Run("異常系: 存在しないID", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, entities.ErrRoleNotFound) {
			t.Errorf("Expected ErrRoleNotFound, got: %v", err)
		}
	})

	t.Run("正常系: 表示名と有効フラグの更新", func(t *testing.T) {
		role.DisplayName = "Senior Moderator"
		role.IsActive = false

		if err := repo.Update(ctx, role); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		stored, err := repo.GetByID(ctx, role.ID)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if stored.DisplayName != "Senior Moderator" || stored.IsActive {
			t.Errorf("Update not applied: %+v", stored)
		}
	})

	t.Run("異常系: 存在しないロールの更新", func(t *testing.T) {
		ghost := &entities.Role{ID: "00000000-0000-0000-0000-000000000000", Name: "ghost"}
		err := repo.Update(ctx, ghost)
		if !errors.Is(err, entities.ErrRoleNotFound) {
			t.Errorf("Expected ErrRoleNotFound, got: %v", err)
		}
	})
}

func TestRoleRepository_UpsertSystem(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRoleRepository(db)
	ctx := context.Background()

	t.Run("正常系: 組み込みロールの作成と再実行時のID安定性", func(t *testing.T) {
		first, err := repo.UpsertSystem(ctx, &entities.Role{
			Name: entities.RoleSuperAdmin, DisplayName: "Super Administrator", LayoutType: entities.TypeAdmin,
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !first.IsSystem || !first.IsActive {
			t.Errorf("System role should be active and marked system: %+v", first)
		}

		second, err := repo.UpsertSystem(ctx, &entities.Role{
			Name: entities.RoleSuperAdmin, DisplayName: "Super Administrator", LayoutType: entities.TypeAdmin,
		})
		if err != nil {
			t.Fatalf("Expected no error on re-run, got: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("Row ID changed across upsert: %s -> %s", first.ID, second.ID)
		}
	})

	t.Run("正常系: 無効化されたロールの再有効化", func(t *testing.T) {
		role, err := repo.GetByName(ctx, entities.RoleSuperAdmin)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		role.IsActive = false
		if err := repo.Update(ctx, role); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		restored, err := repo.UpsertSystem(ctx, &entities.Role{
			Name: entities.RoleSuperAdmin, DisplayName: "Super Administrator", LayoutType: entities.TypeAdmin,
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !restored.IsActive {
			t.Error("UpsertSystem should reactivate the role")
		}
	})
}

func TestRoleRepository_Grants(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresRoleRepository(db)
	permRepo := NewPostgresPermissionRepository(db)
	ctx := context.Background()

	def := entities.NewFunctionPermission("dealers", entities.ActionUpdate, entities.TypeAdmin, nil, nil)
	if _, err := permRepo.Upsert(ctx, def); err != nil {
		t.Fatalf("Failed to upsert permission: %v", err)
	}

	role := &entities.Role{Name: "dealer-manager", DisplayName: "Dealer Manager", IsActive: true, LayoutType: entities.TypeAdmin}
	if err := repo.Create(ctx, role); err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}

	t.Run("正常系: グラント作成と冪等性", func(t *testing.T) {
		created, err := repo.EnsureGrant(ctx, role.ID, def.Name)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !created {
			t.Error("Expected grant row to be created")
		}

		created, err = repo.EnsureGrant(ctx, role.ID, def.Name)
		if err != nil {
			t.Fatalf("Expected no error on duplicate grant, got: %v", err)
		}
		if created {
			t.Error("Duplicate grant should not create a second row")
		}

		set, err := repo.GrantedPermissions(ctx, role.ID)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !set.Has(def.Name) {
			t.Errorf("Expected %s in granted set, got %v", def.Name, set.Names())
		}
	})

	t.Run("正常系: グラント取り消し", func(t *testing.T) {
		if err := repo.RevokeGrant(ctx, role.ID, def.Name); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		set, err := repo.GrantedPermissions(ctx, role.ID)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if set.Has(def.Name) {
			t.Error("Revoked grant should not be in the set")
		}
	})

	t.Run("正常系: ロール削除でグラントも消える", func(t *testing.T) {
		if _, err := repo.EnsureGrant(ctx, role.ID, def.Name); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if err := repo.Delete(ctx, role.ID); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM role_has_permissions WHERE role_id = $1`, role.ID).Scan(&count); err != nil {
			t.Fatalf("Failed to count grants: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected grants to cascade on role deletion, found %d rows", count)
		}
	})
}
