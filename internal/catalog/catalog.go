// Package catalog holds the code-first permission catalog. The catalog is an
// immutable value built once at process start and injected into the
// validator, the reconciler, and the authorization services; there is no
// package-level registry.
package catalog

import (
	"github.com/asahina/tobira/internal/entities"
)

// Catalog is an immutable collection of permission definitions.
type Catalog struct {
	defs   []*entities.PermissionDefinition
	byName map[string]*entities.PermissionDefinition
}

// New builds a catalog from definitions. Duplicate names are kept in the
// list (the validator reports them as fatal); Find resolves to the first
// occurrence.
func New(defs ...*entities.PermissionDefinition) *Catalog {
	byName := make(map[string]*entities.PermissionDefinition, len(defs))
	for _, def := range defs {
		if _, exists := byName[def.Name]; !exists {
			byName[def.Name] = def
		}
	}
	return &Catalog{defs: defs, byName: byName}
}

// ListAll returns all definitions in declaration order.
func (c *Catalog) ListAll() []*entities.PermissionDefinition {
	out := make([]*entities.PermissionDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Find returns the definition with the given name.
func (c *Catalog) Find(name string) (*entities.PermissionDefinition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// Names returns every permission name in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for _, def := range c.defs {
		names = append(names, def.Name)
	}
	return names
}

// ByCategory returns the definitions with the given category.
func (c *Catalog) ByCategory(category entities.Category) []*entities.PermissionDefinition {
	return c.filter(func(def *entities.PermissionDefinition) bool {
		return def.Category == category
	})
}

// ByType returns the definitions with the given permission type.
func (c *Catalog) ByType(typ entities.PermissionType) []*entities.PermissionDefinition {
	return c.filter(func(def *entities.PermissionDefinition) bool {
		return def.Type == typ
	})
}

// ByResource returns the definitions governing the given resource path.
func (c *Catalog) ByResource(resourcePath string) []*entities.PermissionDefinition {
	return c.filter(func(def *entities.PermissionDefinition) bool {
		return def.ResourcePath == resourcePath
	})
}

func (c *Catalog) filter(keep func(*entities.PermissionDefinition) bool) []*entities.PermissionDefinition {
	var out []*entities.PermissionDefinition
	for _, def := range c.defs {
		if keep(def) {
			out = append(out, def)
		}
	}
	return out
}
