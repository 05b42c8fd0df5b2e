// Package session turns a transport credential into a principal with a
// resolved permission set. Session issuance lives elsewhere; this package
// only consumes the lookup and owns the resolved-set cache.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
	"github.com/asahina/tobira/pkg/cache"
)

// VersionSource is the read side of the invalidation protocol: the
// authoritative (version, epoch) pair for a principal's resolved set.
type VersionSource interface {
	Version(principalID string) (version uint64, epoch uint64)
}

// Config holds resolver tuning.
type Config struct {
	// TTL bounds how long a resolved set may be served without recomputation
	// even when no invalidation arrived.
	TTL time.Duration

	// RefreshTimeout bounds the store round-trip when recomputing a set. On
	// timeout the resolution fails and the caller denies; a grant that cannot
	// be confirmed is no grant.
	RefreshTimeout time.Duration

	// DefaultRoleName is the fallback role for principals left role-less
	// after a role deletion.
	DefaultRoleName string
}

// cachedSet is a resolved set plus the invalidation state it was computed at.
type cachedSet struct {
	set     entities.PermissionSet
	version uint64
	epoch   uint64
}

// Resolver resolves session tokens to principals, caching resolved
// permission sets per principal. A cached set is trusted only while its
// (version, epoch) pair still matches the authoritative counters; any
// mismatch forces a recomputation before the set is used in a decision.
type Resolver struct {
	sessions   repositories.SessionRepository
	principals repositories.PrincipalRepository
	roles      repositories.RoleRepository
	cache      cache.Cache
	versions   VersionSource
	config     Config
}

// NewResolver creates a new Resolver.
func NewResolver(
	sessions repositories.SessionRepository,
	principals repositories.PrincipalRepository,
	roles repositories.RoleRepository,
	c cache.Cache,
	versions VersionSource,
	config Config,
) *Resolver {
	return &Resolver{
		sessions:   sessions,
		principals: principals,
		roles:      roles,
		cache:      c,
		versions:   versions,
		config:     config,
	}
}

// Resolve returns the principal behind the token with its resolved
// permission set attached. Returns entities.ErrNoSession for unknown or
// expired tokens.
func (r *Resolver) Resolve(ctx context.Context, token string) (*entities.Principal, error) {
	principal, err := r.sessions.GetPrincipalByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	set, err := r.resolvedSet(ctx, principal)
	if err != nil {
		return nil, err
	}
	principal.Permissions = set

	return principal, nil
}

func (r *Resolver) resolvedSet(ctx context.Context, principal *entities.Principal) (entities.PermissionSet, error) {
	version, epoch := r.versions.Version(principal.ID)

	if v, ok := r.cache.Get(ctx, principal.ID); ok {
		cs := v.(*cachedSet)
		if cs.version == version && cs.epoch == epoch {
			return cs.set, nil
		}
		// Invalidated since it was computed; fall through to recompute.
	}

	rctx, cancel := context.WithTimeout(ctx, r.config.RefreshTimeout)
	defer cancel()

	set, err := r.compute(rctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permission set for principal %s: %w", principal.ID, err)
	}

	if err := r.cache.Set(ctx, principal.ID, &cachedSet{set: set, version: version, epoch: epoch}, r.config.TTL); err != nil {
		return nil, fmt.Errorf("failed to cache permission set for principal %s: %w", principal.ID, err)
	}

	return set, nil
}

// compute recomputes the set from the store. A role-less principal falls
// back to the configured default role's grants.
func (r *Resolver) compute(ctx context.Context, principal *entities.Principal) (entities.PermissionSet, error) {
	if principal.RoleID == "" {
		if r.config.DefaultRoleName == "" {
			return entities.NewPermissionSet(), nil
		}
		fallback, err := r.roles.GetByName(ctx, r.config.DefaultRoleName)
		if err != nil {
			return nil, fmt.Errorf("failed to load default role %s: %w", r.config.DefaultRoleName, err)
		}
		principal.RoleName = fallback.Name
		return r.roles.GrantedPermissions(ctx, fallback.ID)
	}

	return r.principals.ResolvePermissions(ctx, principal.ID)
}
