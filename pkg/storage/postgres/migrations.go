package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(32) NOT NULL,
					code VARCHAR(32) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					contact_email VARCHAR(255) NOT NULL DEFAULT '',
					contact_phone VARCHAR(64) NOT NULL DEFAULT '',
					address TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					onboarded_by UUID,
					onboarded_at TIMESTAMPTZ,
					onboarding_status VARCHAR(16) NOT NULL DEFAULT 'completed',
					version INTEGER NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT organizations_code_key UNIQUE (code)
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_created_at ON organizations(created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_organizations_onboarding_status ON organizations(onboarding_status);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					scope VARCHAR(16) NOT NULL,
					organization_id UUID REFERENCES organizations(id),
					description TEXT NOT NULL DEFAULT '',
					permissions TEXT[] NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					version INTEGER NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT roles_scope_organization_check CHECK (
						(scope = 'platform' AND organization_id IS NULL) OR
						(scope = 'organization' AND organization_id IS NOT NULL)
					)
				);

				CREATE UNIQUE INDEX IF NOT EXISTS roles_name_scope_org_key
					ON roles(name, scope, COALESCE(organization_id, '00000000-0000-0000-0000-000000000000'::uuid));
				CREATE INDEX IF NOT EXISTS idx_roles_organization_id ON roles(organization_id);
				CREATE INDEX IF NOT EXISTS idx_roles_created_at ON roles(created_at DESC);
			`,
		},
		{
			Version:     3,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					first_name VARCHAR(255) NOT NULL,
					last_name VARCHAR(255) NOT NULL,
					user_type VARCHAR(32) NOT NULL,
					organization_id UUID REFERENCES organizations(id),
					role_ids UUID[] NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_login TIMESTAMPTZ,
					version INTEGER NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT users_email_key UNIQUE (email),
					CONSTRAINT users_customer_organization_check CHECK (
						user_type <> 'customer' OR organization_id IS NOT NULL
					)
				);

				CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
				CREATE INDEX IF NOT EXISTS idx_users_role_ids ON users USING GIN (role_ids);
				CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at DESC);
			`,
		},
	}
}

// Migrate applies pending migrations, each in its own transaction, and
// returns how many were applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	applied := 0
	for _, m := range GetMigrations() {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
