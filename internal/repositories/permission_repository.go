package repositories

import (
	"context"

	"github.com/asahina/tobira/internal/entities"
)

// UpsertResult reports what a permission upsert did. Both fields false means
// the stored row already matched the definition and nothing was written.
type UpsertResult struct {
	Created bool // New row inserted
	Updated bool // Existing row metadata overwritten
}

// PermissionRepository defines the interface for permission store access.
// The catalog owns permission identity; the store mirrors it. Every method
// is individually idempotent so the reconciler can retry a failed run.
type PermissionRepository interface {
	// Upsert inserts the definition or overwrites the mutable metadata of an
	// existing row with the same name, keeping the row ID stable and setting
	// is_active back to true. A row that already matches is left untouched, so
	// re-running against an unchanged catalog performs zero writes.
	Upsert(ctx context.Context, def *entities.PermissionDefinition) (*UpsertResult, error)

	// GetByName retrieves a stored permission by name. Returns nil if absent.
	GetByName(ctx context.Context, name string) (*entities.PermissionRecord, error)

	// ListNames returns every stored permission name.
	ListNames(ctx context.Context) ([]string, error)

	// DeleteAbsent deletes every stored permission whose name is not in keep,
	// cascading deletion of its role grants. Returns the deleted names.
	DeleteAbsent(ctx context.Context, keep []string) ([]string, error)
}
