package entities

import (
	"errors"
	"sort"
	"time"
)

// Built-in role names. The reconciler creates these roles and marks them as
// system roles; IsSystem on the persisted row is the source of truth for
// protected-role checks, not this list.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleNameEmpty     = errors.New("role name is required")
	ErrRoleDuplicate     = errors.New("role name already exists")
	ErrRoleIsSystem      = errors.New("system roles cannot be modified")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrNoSession         = errors.New("no session")
)

// Role is a named, persisted group of permission grants.
type Role struct {
	ID          string // UUID
	Name        string // Unique
	DisplayName string
	IsSystem    bool // Created by the reconciler, protected from deletion/free editing
	IsActive    bool
	LayoutType  PermissionType // Which panel surface the role may enter
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleGrant links a role to a permission. At most one row exists per
// (role, permission) pair; the store enforces the composite uniqueness.
type RoleGrant struct {
	RoleID         string
	PermissionName string
	IsAllowed      bool
	IsActive       bool
	CreatedAt      time.Time
}

// Principal is an authenticated actor: a user with a resolved role.
type Principal struct {
	ID          string // UUID
	Email       string
	RoleID      string
	RoleName    string
	IsActive    bool
	Permissions PermissionSet // Resolved set, attached at session-resolution time
}

// IsBypass reports whether the principal holds the privileged bypass role,
// which is exempt from permission-set checks.
func (p *Principal) IsBypass() bool {
	return p.RoleName == RoleSuperAdmin
}

// PermissionSet is a resolved set of permission names. It is derived per
// principal from the active, allowed grants of the principal's role; it is
// never persisted.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts a name into the set.
func (s PermissionSet) Add(name string) {
	s[name] = struct{}{}
}

// IsSupersetOf reports whether every name in other is also in s.
func (s PermissionSet) IsSupersetOf(other PermissionSet) bool {
	if len(other) > len(s) {
		return false
	}
	for name := range other {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Names returns the members in sorted order, for stable logging and diagnostics.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
