package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
	"github.com/google/uuid"
)

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db *sql.DB
}

// NewPostgresRoleRepository creates a new PostgreSQL role repository
func NewPostgresRoleRepository(db *sql.DB) repositories.RoleRepository {
	return &PostgresRoleRepository{db: db}
}

const roleColumns = `id, name, display_name, is_system, is_active, layout_type, created_at, updated_at`

func scanRole(row *sql.Row) (*entities.Role, error) {
	var role entities.Role
	var layoutType string
	err := row.Scan(
		&role.ID, &role.Name, &role.DisplayName, &role.IsSystem,
		&role.IsActive, &layoutType, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	role.LayoutType = entities.PermissionType(layoutType)
	return &role, nil
}

// GetByID retrieves a role by ID
func (r *PostgresRoleRepository) GetByID(ctx context.Context, id string) (*entities.Role, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, entities.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", id, err)
	}
	return role, nil
}

// GetByName retrieves a role by name
func (r *PostgresRoleRepository) GetByName(ctx context.Context, name string) (*entities.Role, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, entities.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", name, err)
	}
	return role, nil
}

// List returns all roles ordered by name
func (r *PostgresRoleRepository) List(ctx context.Context) ([]*entities.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*entities.Role
	for rows.Next() {
		var role entities.Role
		var layoutType string
		if err := rows.Scan(
			&role.ID, &role.Name, &role.DisplayName, &role.IsSystem,
			&role.IsActive, &layoutType, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role.LayoutType = entities.PermissionType(layoutType)
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// Create inserts a new role
func (r *PostgresRoleRepository) Create(ctx context.Context, role *entities.Role) error {
	if strings.TrimSpace(role.Name) == "" {
		return entities.ErrRoleNameEmpty
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	query := `
		INSERT INTO roles (id, name, display_name, is_system, is_active, layout_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		role.ID, role.Name, role.DisplayName, role.IsSystem, role.IsActive, string(role.LayoutType), now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return fmt.Errorf("%w: %s", entities.ErrRoleDuplicate, role.Name)
		}
		return fmt.Errorf("failed to create role %s: %w", role.Name, err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now

	return nil
}

// Update overwrites the mutable role fields
func (r *PostgresRoleRepository) Update(ctx context.Context, role *entities.Role) error {
	query := `
		UPDATE roles
		SET display_name = $2, is_active = $3, layout_type = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		role.ID, role.DisplayName, role.IsActive, string(role.LayoutType), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update role %s: %w", role.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entities.ErrRoleNotFound
	}

	return nil
}

// Delete removes a role; grant rows cascade, principal rows fall back to a
// NULL role via the ON DELETE SET NULL foreign key.
func (r *PostgresRoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entities.ErrRoleNotFound
	}

	return nil
}

// UpsertSystem inserts or refreshes a built-in role by name. The row ID is
// stable across reconciliations, and an already-matching row is not
// rewritten.
func (r *PostgresRoleRepository) UpsertSystem(ctx context.Context, role *entities.Role) (*entities.Role, error) {
	query := `
		INSERT INTO roles (name, display_name, is_system, is_active, layout_type, created_at, updated_at)
		VALUES ($1, $2, TRUE, TRUE, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			is_system = TRUE,
			is_active = TRUE,
			layout_type = EXCLUDED.layout_type,
			updated_at = EXCLUDED.updated_at
		WHERE (roles.display_name, roles.is_system, roles.is_active, roles.layout_type)
			IS DISTINCT FROM
			(EXCLUDED.display_name, TRUE, TRUE, EXCLUDED.layout_type)
		RETURNING ` + roleColumns
	row := r.db.QueryRowContext(ctx, query,
		role.Name, role.DisplayName, string(role.LayoutType), time.Now(),
	)
	stored, err := scanRole(row)
	if err == sql.ErrNoRows {
		return r.GetByName(ctx, role.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert system role %s: %w", role.Name, err)
	}

	return stored, nil
}

// EnsureGrant creates the grant row if absent. The composite primary key on
// (role_id, permission_id) makes re-runs no-ops.
func (r *PostgresRoleRepository) EnsureGrant(ctx context.Context, roleID, permissionName string) (bool, error) {
	query := `
		INSERT INTO role_has_permissions (role_id, permission_id, is_allowed, is_active, created_at)
		SELECT $1, p.id, TRUE, TRUE, $3
		FROM permissions p
		WHERE p.name = $2
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, roleID, permissionName, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to grant %s to role %s: %w", permissionName, roleID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// RevokeGrant removes the grant row
func (r *PostgresRoleRepository) RevokeGrant(ctx context.Context, roleID, permissionName string) error {
	query := `
		DELETE FROM role_has_permissions
		WHERE role_id = $1
			AND permission_id = (SELECT id FROM permissions WHERE name = $2)
	`
	if _, err := r.db.ExecContext(ctx, query, roleID, permissionName); err != nil {
		return fmt.Errorf("failed to revoke %s from role %s: %w", permissionName, roleID, err)
	}
	return nil
}

// GrantedPermissions returns the names of the role's active, allowed grants
func (r *PostgresRoleRepository) GrantedPermissions(ctx context.Context, roleID string) (entities.PermissionSet, error) {
	query := `
		SELECT p.name
		FROM role_has_permissions rhp
		JOIN permissions p ON p.id = rhp.permission_id
		WHERE rhp.role_id = $1
			AND rhp.is_allowed = TRUE
			AND rhp.is_active = TRUE
			AND p.is_active = TRUE
	`
	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants for role %s: %w", roleID, err)
	}
	defer rows.Close()

	set := entities.NewPermissionSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		set.Add(name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}

	return set, nil
}
