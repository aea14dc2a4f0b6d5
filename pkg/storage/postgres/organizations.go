package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

const organizationColumns = `id, name, type, code, description, contact_email, contact_phone, address,
	is_active, onboarded_by, onboarded_at, onboarding_status, version, created_at, updated_at`

func scanOrganization(row scanner) (*identity.Organization, error) {
	var (
		o           identity.Organization
		onboardedBy sql.NullString
		onboardedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.Type, &o.Code, &o.Description, &o.ContactEmail, &o.ContactPhone, &o.Address,
		&o.IsActive, &onboardedBy, &onboardedAt, &o.OnboardingStatus, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.OnboardedBy = onboardedBy.String
	if onboardedAt.Valid {
		t := onboardedAt.Time
		o.OnboardedAt = &t
	}
	return &o, nil
}

// CreateOrganization inserts o, assigning id, version and timestamps.
func (s *Store) CreateOrganization(ctx context.Context, o *identity.Organization) error {
	if o.ID == "" {
		o.ID = identity.NewID()
	}
	if o.OnboardingStatus == "" {
		o.OnboardingStatus = identity.OnboardingCompleted
	}
	now := s.now()
	o.CreatedAt, o.UpdatedAt, o.Version = now, now, 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.Name, o.Type, o.Code, o.Description, o.ContactEmail, o.ContactPhone, o.Address,
		o.IsActive, nullString(o.OnboardedBy), o.OnboardedAt, o.OnboardingStatus, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "Organization")
	}
	return nil
}

// GetOrganization loads one organization.
func (s *Store) GetOrganization(ctx context.Context, id string) (*identity.Organization, error) {
	if !identity.IsValidID(id) {
		return nil, apperr.NotFound("Organization")
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE id = $1", id)
	o, err := scanOrganization(row)
	if err != nil {
		return nil, mapError(err, "Organization")
	}
	return o, nil
}

// UpdateOrganization writes o if its version is current and bumps it.
func (s *Store) UpdateOrganization(ctx context.Context, o *identity.Organization) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET
			name = $3, type = $4, code = $5, description = $6, contact_email = $7,
			contact_phone = $8, address = $9, is_active = $10, onboarded_by = $11,
			onboarded_at = $12, onboarding_status = $13, updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2`,
		o.ID, o.Version, o.Name, o.Type, o.Code, o.Description, o.ContactEmail,
		o.ContactPhone, o.Address, o.IsActive, nullString(o.OnboardedBy),
		o.OnboardedAt, o.OnboardingStatus, now,
	)
	if err != nil {
		return mapError(err, "Organization")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return s.staleOrMissing(ctx, "organizations", o.ID, "Organization")
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}

// ListOrganizations returns one page of organizations, newest first.
func (s *Store) ListOrganizations(ctx context.Context, filter storage.OrganizationFilter, page storage.Page) (*storage.ListResult[*identity.Organization], error) {
	var w whereBuilder
	if filter.ID != "" {
		if !identity.IsValidID(filter.ID) {
			return &storage.ListResult[*identity.Organization]{Items: []*identity.Organization{}, Page: page}, nil
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Type != "" {
		w.add("type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.OnboardingStatus != "" {
		w.add("onboarding_status = ?", filter.OnboardingStatus)
	}
	if filter.CreatedBefore != nil {
		w.add("created_at < ?", *filter.CreatedBefore)
	}

	result := &storage.ListResult[*identity.Organization]{Items: []*identity.Organization{}, Page: page}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM organizations"+w.clause(), w.args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}

	suffix, args := w.pageArgs(page)
	rows, err := s.db.QueryContext(ctx, "SELECT "+organizationColumns+" FROM organizations"+w.clause()+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		result.Items = append(result.Items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}
	return result, nil
}

// DeleteOrganization hard-deletes an organization.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	if !identity.IsValidID(id) {
		return apperr.NotFound("Organization")
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM organizations WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Wrap(apperr.KindValidation, err, storage.MsgOrganizationInUse)
		}
		return mapError(err, "Organization")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Organization")
	}
	return nil
}
