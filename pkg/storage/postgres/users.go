package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

const userColumns = `id, email, password_hash, first_name, last_name, user_type, organization_id,
	role_ids, is_active, last_login, version, created_at, updated_at`

func scanUser(row scanner) (*identity.User, error) {
	var (
		u         identity.User
		orgID     sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.UserType, &orgID,
		pq.Array(&u.RoleIDs), &u.IsActive, &lastLogin, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.OrganizationID = orgID.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if u.RoleIDs == nil {
		u.RoleIDs = []string{}
	}
	return &u, nil
}

// CreateUser inserts u, assigning id, version and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	if u.ID == "" {
		u.ID = identity.NewID()
	}
	if u.RoleIDs == nil {
		u.RoleIDs = []string{}
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt, u.Version = now, now, 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.UserType, nullString(u.OrganizationID),
		pq.Array(u.RoleIDs), u.IsActive, u.LastLogin, u.Version, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "User")
	}
	return nil
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, id string) (*identity.User, error) {
	if !identity.IsValidID(id) {
		return nil, apperr.NotFound("User")
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "User")
	}
	return u, nil
}

// GetUserByEmail loads a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", identity.NormalizeEmail(email)))
	if err != nil {
		return nil, mapError(err, "User")
	}
	return u, nil
}

// UpdateUser writes u if its version is current and bumps it.
func (s *Store) UpdateUser(ctx context.Context, u *identity.User) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			email = $3, password_hash = $4, first_name = $5, last_name = $6, user_type = $7,
			organization_id = $8, role_ids = $9, is_active = $10, last_login = $11,
			updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2`,
		u.ID, u.Version, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.UserType,
		nullString(u.OrganizationID), pq.Array(u.RoleIDs), u.IsActive, u.LastLogin, now,
	)
	if err != nil {
		return mapError(err, "User")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return s.staleOrMissing(ctx, "users", u.ID, "User")
	}
	u.Version++
	u.UpdatedAt = now
	return nil
}

// ListUsers returns one page of users, newest first.
func (s *Store) ListUsers(ctx context.Context, filter storage.UserFilter, page storage.Page) (*storage.ListResult[*identity.User], error) {
	result := &storage.ListResult[*identity.User]{Items: []*identity.User{}, Page: page}

	var w whereBuilder
	if filter.OrganizationID != "" {
		if !identity.IsValidID(filter.OrganizationID) {
			return result, nil
		}
		w.add("organization_id = ?", filter.OrganizationID)
	}
	if filter.UserType != "" {
		w.add("user_type = ?", filter.UserType)
	}
	if filter.RoleIDs != nil {
		ids := make([]string, 0, len(filter.RoleIDs))
		for _, id := range filter.RoleIDs {
			if identity.IsValidID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return result, nil
		}
		w.add("role_ids && ?::uuid[]", pq.Array(ids))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+w.clause(), w.args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	suffix, args := w.pageArgs(page)
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users"+w.clause()+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result.Items = append(result.Items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return result, nil
}

// ListUserIDsByRole returns the ids of users holding roleID.
func (s *Store) ListUserIDsByRole(ctx context.Context, roleID string) ([]string, error) {
	if !identity.IsValidID(roleID) {
		return []string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users WHERE $1::uuid = ANY(role_ids)", roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordLogin stamps the last login time without touching the version.
func (s *Store) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if !identity.IsValidID(id) {
		return apperr.NotFound("User")
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("User")
	}
	return nil
}
