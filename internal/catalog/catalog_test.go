package catalog

import (
	"testing"

	"github.com/asahina/tobira/internal/entities"
)

func TestCatalog_Find(t *testing.T) {
	c := New(
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
		entities.NewFunctionPermission("posts", entities.ActionCreate, entities.TypeAdmin, nil, nil),
	)

	def, ok := c.Find("admin.posts.view")
	if !ok {
		t.Fatal("Find() should locate a declared permission")
	}
	if def.Category != entities.CategoryView {
		t.Errorf("Category = %v, want view", def.Category)
	}

	if _, ok := c.Find("posts.delete"); ok {
		t.Error("Find() should not locate an undeclared permission")
	}
}

func TestCatalog_Find_DuplicateResolvesToFirst(t *testing.T) {
	first := entities.NewViewPermission("admin", "posts", entities.TypeAdmin,
		map[string]string{"en": "first"}, nil)
	second := entities.NewViewPermission("admin", "posts", entities.TypeAdmin,
		map[string]string{"en": "second"}, nil)
	c := New(first, second)

	def, ok := c.Find("admin.posts.view")
	if !ok {
		t.Fatal("Find() should locate the permission")
	}
	if def.DisplayName["en"] != "first" {
		t.Errorf("Find() resolved to %q, want the first occurrence", def.DisplayName["en"])
	}
	if len(c.ListAll()) != 2 {
		t.Errorf("ListAll() should keep duplicates for the validator, got %d", len(c.ListAll()))
	}
}

func TestCatalog_Filters(t *testing.T) {
	c := New(
		entities.NewLayoutPermission("admin", entities.TypeAdmin, nil, nil),
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin, nil, nil),
		entities.NewFunctionPermission("posts", entities.ActionCreate, entities.TypeAdmin, nil, nil),
		entities.NewFunctionPermission("posts", entities.ActionDelete, entities.TypeAdmin, nil, nil),
		entities.NewViewPermission("user", "profile", entities.TypeUser, nil, nil),
	)

	if got := len(c.ByCategory(entities.CategoryFunction)); got != 2 {
		t.Errorf("ByCategory(function) = %d defs, want 2", got)
	}
	if got := len(c.ByType(entities.TypeUser)); got != 1 {
		t.Errorf("ByType(user) = %d defs, want 1", got)
	}
	if got := len(c.ByResource("posts")); got != 3 {
		t.Errorf("ByResource(posts) = %d defs, want 3", got)
	}
}

func TestCatalog_Names_DeclarationOrder(t *testing.T) {
	c := New(
		entities.NewViewPermission("admin", "zebra", entities.TypeAdmin, nil, nil),
		entities.NewViewPermission("admin", "apple", entities.TypeAdmin, nil, nil),
	)

	names := c.Names()
	if len(names) != 2 || names[0] != "admin.zebra.view" || names[1] != "admin.apple.view" {
		t.Errorf("Names() = %v, want declaration order", names)
	}
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()

	validator := NewValidator(c)
	if err := validator.Validate(); err != nil {
		t.Fatalf("default catalog must validate cleanly: %v", err)
	}
	if warnings := validator.Warnings(); len(warnings) != 0 {
		t.Errorf("default catalog should have no warnings, got %v", warnings)
	}
}

func TestDefault_CoversBothSurfaces(t *testing.T) {
	c := Default()

	for _, name := range []string{"admin.layout", "user.layout"} {
		if _, ok := c.Find(name); !ok {
			t.Errorf("default catalog missing %s", name)
		}
	}

	if got := len(c.ByType(entities.TypeUser)); got == 0 {
		t.Error("default catalog should declare user-surface permissions")
	}
	if got := len(c.ByType(entities.TypeAdmin)); got == 0 {
		t.Error("default catalog should declare admin-surface permissions")
	}
}
