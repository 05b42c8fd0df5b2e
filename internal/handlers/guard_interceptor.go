package handlers

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/infrastructure/metrics"
	"github.com/asahina/tobira/internal/services/authorization"
)

// PermissionRegistry maps gRPC full method names to the permission required
// to call them. Methods without an entry are public.
type PermissionRegistry struct {
	required map[string]string
}

// NewPermissionRegistry creates an empty registry.
func NewPermissionRegistry() *PermissionRegistry {
	return &PermissionRegistry{required: make(map[string]string)}
}

// Register declares that fullMethod requires the named permission.
func (r *PermissionRegistry) Register(fullMethod string, permission string) {
	r.required[fullMethod] = permission
}

// Lookup returns the permission required for fullMethod, or false when the
// method is public.
func (r *PermissionRegistry) Lookup(fullMethod string) (string, bool) {
	permission, ok := r.required[fullMethod]
	return permission, ok
}

// Registered returns the method-to-permission entries of the registry.
func (r *PermissionRegistry) Registered() map[string]string {
	entries := make(map[string]string, len(r.required))
	for method, permission := range r.required {
		entries[method] = permission
	}
	return entries
}

// DefaultPermissionRegistry maps the served RPC surface onto the permission
// catalog. List and Get share the page-level view permission; mutations
// require the matching function permission.
func DefaultPermissionRegistry() *PermissionRegistry {
	registry := NewPermissionRegistry()

	registry.Register("/tobira.v1.UserService/ListUsers", "admin.users.view")
	registry.Register("/tobira.v1.UserService/GetUser", "admin.users.view")
	registry.Register("/tobira.v1.UserService/CreateUser", "users.create")
	registry.Register("/tobira.v1.UserService/UpdateUser", "users.update")
	registry.Register("/tobira.v1.UserService/DeleteUser", "users.delete")

	registry.Register("/tobira.v1.RoleService/ListRoles", "admin.roles.view")
	registry.Register("/tobira.v1.RoleService/GetRole", "admin.roles.view")
	registry.Register("/tobira.v1.RoleService/CreateRole", "roles.create")
	registry.Register("/tobira.v1.RoleService/UpdateRole", "roles.update")
	registry.Register("/tobira.v1.RoleService/DeleteRole", "roles.delete")
	registry.Register("/tobira.v1.RoleService/AssignRole", "users.update")

	registry.Register("/tobira.v1.PermissionService/ListPermissions", "admin.permissions.view")

	registry.Register("/tobira.v1.ProfileService/GetProfile", "user.profile.view")
	registry.Register("/tobira.v1.ProfileService/UpdateProfile", "profile.update")

	return registry
}

// GuardInterface is the subset of the authorization guard used by the
// interceptor.
type GuardInterface interface {
	Authorize(ctx context.Context, token string, required string) (*entities.Principal, error)
}

type principalContextKey struct{}

// FromContext returns the principal attached by the guard interceptor, or
// false when the method was public.
func FromContext(ctx context.Context) (*entities.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*entities.Principal)
	return principal, ok
}

// bearerToken extracts the bearer token from incoming gRPC metadata.
func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	token, found := strings.CutPrefix(values[0], "Bearer ")
	if !found {
		return ""
	}
	return token
}

// UnaryGuardInterceptor returns a gRPC interceptor that enforces the
// permission registry. Denied calls report only a generic message so callers
// cannot enumerate the permission catalog; the missing permission is kept
// server side (logged by the guard's callers).
// Both collector and exporter may be nil.
func UnaryGuardInterceptor(guard GuardInterface, registry *PermissionRegistry, collector *metrics.Collector, exporter *metrics.PrometheusExporter) grpc.UnaryServerInterceptor {
	recordDecision := func(allowed bool) {
		if collector != nil {
			collector.RecordDecision(allowed)
		}
		if exporter != nil {
			exporter.RecordDecision(allowed)
		}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		required, ok := registry.Lookup(info.FullMethod)
		if !ok {
			return handler(ctx, req)
		}

		principal, err := guard.Authorize(ctx, bearerToken(ctx), required)
		if err != nil {
			recordDecision(false)
			if errors.Is(err, authorization.ErrUnauthenticated) {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
			var forbidden *authorization.ForbiddenError
			if errors.As(err, &forbidden) {
				return nil, status.Error(codes.PermissionDenied, forbidden.Error())
			}
			return nil, status.Error(codes.Internal, "authorization failed")
		}

		recordDecision(true)
		return handler(context.WithValue(ctx, principalContextKey{}, principal), req)
	}
}
