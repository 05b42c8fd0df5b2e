package entities

import (
	"fmt"
	"strings"
)

// Category classifies what kind of gate a permission is.
type Category int

const (
	// CategoryLayout gates entry into a whole panel surface (admin/user console).
	CategoryLayout Category = iota
	// CategoryView gates read access to a single page.
	CategoryView
	// CategoryFunction gates a mutating operation.
	CategoryFunction
)

// String returns the persisted representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryLayout:
		return "layout"
	case CategoryView:
		return "view"
	case CategoryFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ParseCategory converts a persisted category string back to a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "layout":
		return CategoryLayout, nil
	case "view":
		return CategoryView, nil
	case "function":
		return CategoryFunction, nil
	default:
		return 0, fmt.Errorf("unknown category: %q", s)
	}
}

// Action is the operation a permission governs.
type Action string

const (
	ActionAccess Action = "access"
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// ValidAction reports whether a is one of the known actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionAccess, ActionView, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// PermissionType partitions permissions by the principal population they are
// ever granted to. It drives default role membership during reconciliation.
type PermissionType string

const (
	TypeAdmin PermissionType = "admin"
	TypeUser  PermissionType = "user"
)

// PermissionDefinition is the atomic unit of authorization. Definitions live
// in code (the catalog is the source of truth); the store only mirrors them.
type PermissionDefinition struct {
	Name         string            // Globally unique, shape depends on Category
	Category     Category          // layout | view | function
	ResourcePath string            // Logical resource the permission governs
	Action       Action            // access | view | create | read | update | delete | manage
	Type         PermissionType    // admin | user
	DisplayName  map[string]string // Locale-keyed, not authorization-relevant
	Description  map[string]string // Locale-keyed, not authorization-relevant
	Dependencies []string          // Names that must also exist (validation aid only)
}

// NewLayoutPermission builds a panel-entry permission. The name is derived as
// "{surface}.layout" and the action is fixed to access, so a layout
// definition cannot be constructed with the wrong shape.
func NewLayoutPermission(surface string, typ PermissionType, displayName, description map[string]string) *PermissionDefinition {
	return &PermissionDefinition{
		Name:         surface + ".layout",
		Category:     CategoryLayout,
		ResourcePath: surface,
		Action:       ActionAccess,
		Type:         typ,
		DisplayName:  displayName,
		Description:  description,
	}
}

// NewViewPermission builds a page-read permission named
// "{module}.{resource}.view" with the action fixed to view.
func NewViewPermission(module, resource string, typ PermissionType, displayName, description map[string]string) *PermissionDefinition {
	return &PermissionDefinition{
		Name:         module + "." + resource + ".view",
		Category:     CategoryView,
		ResourcePath: resource,
		Action:       ActionView,
		Type:         typ,
		DisplayName:  displayName,
		Description:  description,
	}
}

// NewFunctionPermission builds a mutating-operation permission named
// "{resource}.{action}".
func NewFunctionPermission(resource string, action Action, typ PermissionType, displayName, description map[string]string) *PermissionDefinition {
	return &PermissionDefinition{
		Name:         resource + "." + string(action),
		Category:     CategoryFunction,
		ResourcePath: resource,
		Action:       action,
		Type:         typ,
		DisplayName:  displayName,
		Description:  description,
	}
}

// WithDependencies records names that must also exist in the catalog.
// Dependencies are a validation aid, not an implication rule: granting this
// permission never auto-grants them.
func (p *PermissionDefinition) WithDependencies(names ...string) *PermissionDefinition {
	p.Dependencies = append(p.Dependencies, names...)
	return p
}

// Validate checks that the definition's name, category, and action follow the
// structural convention. Definitions built via the New*Permission constructors
// always pass; this exists for definitions unmarshaled from elsewhere.
func (p *PermissionDefinition) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("permission name is required")
	}
	if !ValidAction(p.Action) {
		return fmt.Errorf("permission %s: unknown action %q", p.Name, p.Action)
	}
	if p.Type != TypeAdmin && p.Type != TypeUser {
		return fmt.Errorf("permission %s: unknown permission type %q", p.Name, p.Type)
	}
	switch p.Category {
	case CategoryLayout:
		if !strings.HasSuffix(p.Name, ".layout") {
			return fmt.Errorf("permission %s: layout permissions must end in .layout", p.Name)
		}
		if p.Action != ActionAccess {
			return fmt.Errorf("permission %s: layout permissions must use action access, got %q", p.Name, p.Action)
		}
	case CategoryView:
		if !strings.HasSuffix(p.Name, ".view") {
			return fmt.Errorf("permission %s: view permissions must end in .view", p.Name)
		}
		if p.Action != ActionView {
			return fmt.Errorf("permission %s: view permissions must use action view, got %q", p.Name, p.Action)
		}
	case CategoryFunction:
		if strings.Contains(p.Name, ".view") || strings.Contains(p.Name, ".layout") {
			return fmt.Errorf("permission %s: function permissions must not contain .view or .layout", p.Name)
		}
	default:
		return fmt.Errorf("permission %s: unknown category", p.Name)
	}
	return nil
}
