package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/asahina/tobira/internal/entities"
	"github.com/asahina/tobira/internal/repositories"
)

// PostgresPrincipalRepository implements PrincipalRepository and
// SessionRepository using PostgreSQL
type PostgresPrincipalRepository struct {
	db *sql.DB
}

// NewPostgresPrincipalRepository creates a new PostgreSQL principal repository
func NewPostgresPrincipalRepository(db *sql.DB) *PostgresPrincipalRepository {
	return &PostgresPrincipalRepository{db: db}
}

// GetByID retrieves a principal without resolved permissions
func (r *PostgresPrincipalRepository) GetByID(ctx context.Context, id string) (*entities.Principal, error) {
	query := `
		SELECT pr.id, pr.email, COALESCE(pr.role_id::text, ''), COALESCE(ro.name, ''), pr.is_active
		FROM principals pr
		LEFT JOIN roles ro ON ro.id = pr.role_id
		WHERE pr.id = $1
	`
	var p entities.Principal
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Email, &p.RoleID, &p.RoleName, &p.IsActive)
	if err == sql.ErrNoRows {
		return nil, entities.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal %s: %w", id, err)
	}

	return &p, nil
}

// CountByRole returns how many principals currently hold the role
func (r *PostgresPrincipalRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals WHERE role_id = $1`, roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count principals for role %s: %w", roleID, err)
	}
	return count, nil
}

// SetRole assigns a single principal to a role
func (r *PostgresPrincipalRepository) SetRole(ctx context.Context, principalID, roleID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE principals SET role_id = $2, updated_at = now() WHERE id = $1`,
		principalID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to set role for principal %s: %w", principalID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entities.ErrPrincipalNotFound
	}
	return nil
}

// ReassignRole moves every principal from one role to another
func (r *PostgresPrincipalRepository) ReassignRole(ctx context.Context, fromRoleID, toRoleID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE principals SET role_id = $2, updated_at = now() WHERE role_id = $1`,
		fromRoleID, toRoleID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign principals from role %s: %w", fromRoleID, err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return moved, nil
}

// ResolvePermissions computes the principal's permission set from the active,
// allowed grants of the principal's role. A principal without a role resolves
// to the empty set; the session layer applies the default-role fallback.
func (r *PostgresPrincipalRepository) ResolvePermissions(ctx context.Context, principalID string) (entities.PermissionSet, error) {
	query := `
		SELECT p.name
		FROM principals pr
		JOIN role_has_permissions rhp ON rhp.role_id = pr.role_id
		JOIN permissions p ON p.id = rhp.permission_id
		WHERE pr.id = $1
			AND rhp.is_allowed = TRUE
			AND rhp.is_active = TRUE
			AND p.is_active = TRUE
	`
	rows, err := r.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions for principal %s: %w", principalID, err)
	}
	defer rows.Close()

	set := entities.NewPermissionSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission name: %w", err)
		}
		set.Add(name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permission names: %w", err)
	}

	return set, nil
}

// GetPrincipalByToken resolves a session token to its principal. Tokens are
// stored hashed; expired sessions resolve to no session.
func (r *PostgresPrincipalRepository) GetPrincipalByToken(ctx context.Context, token string) (*entities.Principal, error) {
	hash := sha256.Sum256([]byte(token))
	query := `
		SELECT pr.id, pr.email, COALESCE(pr.role_id::text, ''), COALESCE(ro.name, ''), pr.is_active
		FROM sessions s
		JOIN principals pr ON pr.id = s.principal_id
		LEFT JOIN roles ro ON ro.id = pr.role_id
		WHERE s.token_hash = $1
			AND s.expires_at > now()
	`
	var p entities.Principal
	err := r.db.QueryRowContext(ctx, query, hex.EncodeToString(hash[:])).Scan(
		&p.ID, &p.Email, &p.RoleID, &p.RoleName, &p.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, entities.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return &p, nil
}

var (
	_ repositories.PrincipalRepository = (*PostgresPrincipalRepository)(nil)
	_ repositories.SessionRepository   = (*PostgresPrincipalRepository)(nil)
)
