package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
	"github.com/lib/pq"
)

// PostgresPermissionRepository implements PermissionRepository using PostgreSQL
type PostgresPermissionRepository struct {
	db *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgreSQL permission repository
func NewPostgresPermissionRepository(db *sql.DB) repositories.PermissionRepository {
	return &PostgresPermissionRepository{db: db}
}

// Upsert inserts the definition or overwrites the metadata of the existing
// row with the same name. The row ID never changes on conflict, so role
// grants referencing it survive catalog updates. The DO UPDATE is guarded by
// IS DISTINCT FROM: an already-matching row produces no write and no
// returned row, which is what makes a repeated reconciliation a no-op.
func (r *PostgresPermissionRepository) Upsert(ctx context.Context, def *entities.PermissionDefinition) (*repositories.UpsertResult, error) {
	displayName, err := json.Marshal(def.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal display name: %w", err)
	}
	description, err := json.Marshal(def.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal description: %w", err)
	}

	query := `
		INSERT INTO permissions (
			name, category, resource_path, action, permission_type,
			display_name, description, dependencies, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
		ON CONFLICT (name) DO UPDATE SET
			category = EXCLUDED.category,
			resource_path = EXCLUDED.resource_path,
			action = EXCLUDED.action,
			permission_type = EXCLUDED.permission_type,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			dependencies = EXCLUDED.dependencies,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		WHERE (permissions.category, permissions.resource_path, permissions.action,
			permissions.permission_type, permissions.display_name, permissions.description,
			permissions.dependencies, permissions.is_active)
			IS DISTINCT FROM
			(EXCLUDED.category, EXCLUDED.resource_path, EXCLUDED.action,
			EXCLUDED.permission_type, EXCLUDED.display_name, EXCLUDED.description,
			EXCLUDED.dependencies, TRUE)
		RETURNING (xmax = 0)
	`
	var created bool
	err = r.db.QueryRowContext(ctx, query,
		def.Name, def.Category.String(), def.ResourcePath, string(def.Action), string(def.Type),
		displayName, description, pq.Array(def.Dependencies), time.Now(),
	).Scan(&created)
	if err == sql.ErrNoRows {
		// Row already matches the definition.
		return &repositories.UpsertResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert permission %s: %w", def.Name, err)
	}

	return &repositories.UpsertResult{Created: created, Updated: !created}, nil
}

// GetByName retrieves a stored permission by name
func (r *PostgresPermissionRepository) GetByName(ctx context.Context, name string) (*entities.PermissionRecord, error) {
	query := `
		SELECT id, name, category, resource_path, action, permission_type,
			display_name, description, dependencies, is_active, created_at, updated_at
		FROM permissions
		WHERE name = $1
	`
	var (
		rec          entities.PermissionRecord
		category     string
		action       string
		permType     string
		displayName  []byte
		description  []byte
		dependencies []string
	)
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&rec.ID, &rec.Definition.Name, &category, &rec.Definition.ResourcePath, &action, &permType,
		&displayName, &description, pq.Array(&dependencies), &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission %s: %w", name, err)
	}

	cat, err := entities.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("permission %s: %w", name, err)
	}
	rec.Definition.Category = cat
	rec.Definition.Action = entities.Action(action)
	rec.Definition.Type = entities.PermissionType(permType)
	rec.Definition.Dependencies = dependencies

	if err := json.Unmarshal(displayName, &rec.Definition.DisplayName); err != nil {
		return nil, fmt.Errorf("permission %s: failed to unmarshal display name: %w", name, err)
	}
	if err := json.Unmarshal(description, &rec.Definition.Description); err != nil {
		return nil, fmt.Errorf("permission %s: failed to unmarshal description: %w", name, err)
	}

	return &rec, nil
}

// ListNames returns every stored permission name
func (r *PostgresPermissionRepository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permission names: %w", err)
	}

	return names, nil
}

// DeleteAbsent deletes every stored permission not named in keep. Role grant
// rows go with them via the ON DELETE CASCADE on role_has_permissions.
func (r *PostgresPermissionRepository) DeleteAbsent(ctx context.Context, keep []string) ([]string, error) {
	query := `
		DELETE FROM permissions
		WHERE name <> ALL($1)
		RETURNING name
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(keep))
	if err != nil {
		return nil, fmt.Errorf("failed to prune permissions: %w", err)
	}
	defer rows.Close()

	var pruned []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan pruned name: %w", err)
		}
		pruned = append(pruned, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pruned names: %w", err)
	}

	return pruned, nil
}
