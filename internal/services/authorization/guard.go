package authorization

import (
	"context"

	"github.com/asahina/tobira/internal/entities"
)

// SessionResolverInterface resolves a transport credential into a principal
// with an attached resolved permission set. Session issuance is external;
// only resolution is consumed here.
type SessionResolverInterface interface {
	// Resolve returns the principal for a session token, or
	// entities.ErrNoSession when the token is unknown or expired.
	Resolve(ctx context.Context, token string) (*entities.Principal, error)
}

// Operation is a protected operation executed only after the guard allows it.
type Operation func(ctx context.Context, principal *entities.Principal) error

// Guard wraps protected operations with session resolution and the decision
// function.
type Guard struct {
	resolver SessionResolverInterface
}

// NewGuard creates a new Guard.
func NewGuard(resolver SessionResolverInterface) *Guard {
	return &Guard{resolver: resolver}
}

// Authorize resolves the principal behind token and checks the required
// permission. It returns the principal on allow; ErrUnauthenticated when
// there is no usable session (including an inactive principal); and a
// *ForbiddenError when the session is valid but the permission is missing.
//
// Any resolution failure, including a cache-refresh timeout, denies: an
// unconfirmed grant is no grant.
func (g *Guard) Authorize(ctx context.Context, token string, required string) (*entities.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	principal, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		// No session, or a store/cache-refresh failure that leaves the grant
		// unconfirmed. Both collapse to the same generic outcome.
		return nil, ErrUnauthenticated
	}
	if !principal.IsActive {
		return nil, ErrUnauthenticated
	}

	decision := Decide(principal, required)
	if !decision.Allowed {
		return nil, &ForbiddenError{
			Missing: decision.Missing,
			Have:    principal.Permissions.Names(),
		}
	}

	return principal, nil
}

// Wrap returns a function that runs op only if the session behind the token
// holds the required permission. The deny outcomes of Authorize pass through
// unchanged; op is never started on a deny.
func (g *Guard) Wrap(required string, op Operation) func(ctx context.Context, token string) error {
	return func(ctx context.Context, token string) error {
		principal, err := g.Authorize(ctx, token, required)
		if err != nil {
			return err
		}
		return op(ctx, principal)
	}
}
