package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

const roleColumns = `id, name, scope, organization_id, description, permissions, is_active, version, created_at, updated_at`

func scanRole(row scanner) (*identity.Role, error) {
	var (
		r     identity.Role
		orgID sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Name, &r.Scope, &orgID, &r.Description, pq.Array(&r.Permissions),
		&r.IsActive, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.OrganizationID = orgID.String
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	return &r, nil
}

// CreateRole inserts r, assigning id, version and timestamps.
func (s *Store) CreateRole(ctx context.Context, r *identity.Role) error {
	if r.ID == "" {
		r.ID = identity.NewID()
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt, r.Version = now, now, 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (`+roleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.Name, r.Scope, nullString(r.OrganizationID), r.Description, pq.Array(r.Permissions),
		r.IsActive, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "Role")
	}
	return nil
}

// GetRole loads one role.
func (s *Store) GetRole(ctx context.Context, id string) (*identity.Role, error) {
	if !identity.IsValidID(id) {
		return nil, apperr.NotFound("Role")
	}
	r, err := scanRole(s.db.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "Role")
	}
	return r, nil
}

// GetRoles loads the roles among ids that exist. Malformed ids are skipped.
func (s *Store) GetRoles(ctx context.Context, ids []string) ([]*identity.Role, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if identity.IsValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*identity.Role{}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE id = ANY($1::uuid[])", pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// FindRole looks up a role by its natural key.
func (s *Store) FindRole(ctx context.Context, name string, scope identity.RoleScope, organizationID string) (*identity.Role, error) {
	var w whereBuilder
	w.add("name = ?", name)
	w.add("scope = ?", scope)
	if organizationID == "" {
		w.add("organization_id IS NULL")
	} else {
		if !identity.IsValidID(organizationID) {
			return nil, apperr.NotFound("Role")
		}
		w.add("organization_id = ?", organizationID)
	}
	r, err := scanRole(s.db.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles"+w.clause(), w.args...))
	if err != nil {
		return nil, mapError(err, "Role")
	}
	return r, nil
}

// UpdateRole writes r if its version is current and bumps it.
func (s *Store) UpdateRole(ctx context.Context, r *identity.Role) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE roles SET
			name = $3, description = $4, permissions = $5, is_active = $6,
			updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2`,
		r.ID, r.Version, r.Name, r.Description, pq.Array(r.Permissions), r.IsActive, now,
	)
	if err != nil {
		return mapError(err, "Role")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return s.staleOrMissing(ctx, "roles", r.ID, "Role")
	}
	r.Version++
	r.UpdatedAt = now
	return nil
}

// ListRoles returns one page of roles, newest first.
func (s *Store) ListRoles(ctx context.Context, filter storage.RoleFilter, page storage.Page) (*storage.ListResult[*identity.Role], error) {
	result := &storage.ListResult[*identity.Role]{Items: []*identity.Role{}, Page: page}

	var w whereBuilder
	if filter.OrganizationID != "" {
		if !identity.IsValidID(filter.OrganizationID) {
			return result, nil
		}
		w.add("organization_id = ?", filter.OrganizationID)
	}
	if filter.Scope != "" {
		w.add("scope = ?", filter.Scope)
	}
	if filter.Name != "" {
		w.add("name = ?", filter.Name)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles"+w.clause(), w.args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}

	suffix, args := w.pageArgs(page)
	rows, err := s.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles"+w.clause()+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	items, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// DeleteRole hard-deletes a role.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if !identity.IsValidID(id) {
		return apperr.NotFound("Role")
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return mapError(err, "Role")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Role")
	}
	return nil
}

func collectRoles(rows *sql.Rows) ([]*identity.Role, error) {
	roles := []*identity.Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}
