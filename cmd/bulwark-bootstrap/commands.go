package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/rbac"
	"github.com/platinummonkey/bulwark/pkg/storage"
	"github.com/platinummonkey/bulwark/pkg/storage/postgres"
)

// Globals are shared by every subcommand.
type Globals struct {
	LogLevel string
}

func (g *Globals) logger() *observability.Logger {
	return observability.NewLogger(observability.ParseLogLevel(g.LogLevel), os.Stdout).
		WithField("service", "bulwark-bootstrap")
}

// DatabaseFlags locate the Postgres database.
type DatabaseFlags struct {
	DatabaseURL string `help:"PostgreSQL connection string." required:"" env:"BULWARK_DATABASE_URL"`
}

func (d DatabaseFlags) open(ctx context.Context) (*postgres.Store, func(), error) {
	db, err := postgres.Open(ctx, postgres.DefaultConnectionConfig(d.DatabaseURL))
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}

// MigrateCmd applies pending schema migrations.
type MigrateCmd struct {
	DatabaseFlags `embed:""`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	logger := globals.logger()
	db, err := postgres.Open(ctx, postgres.DefaultConnectionConfig(m.DatabaseURL))
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.WithField("applied", applied).Info("Database migrated")
	return nil
}

// SeedCmd creates the platform roles and the platform owner account. It is
// idempotent: existing roles and an existing owner are left untouched.
type SeedCmd struct {
	DatabaseFlags `embed:""`
	Owner         OwnerFlags `embed:"" prefix:"owner-"`
}

// OwnerFlags describe the platform owner account.
type OwnerFlags struct {
	Email     string `help:"Platform owner email." required:"" env:"BULWARK_OWNER_EMAIL"`
	Password  string `help:"Platform owner password (at least 8 characters)." required:"" env:"BULWARK_OWNER_PASSWORD"`
	FirstName string `help:"Platform owner first name." default:"Platform" env:"BULWARK_OWNER_FIRST_NAME"`
	LastName  string `help:"Platform owner last name." default:"Owner" env:"BULWARK_OWNER_LAST_NAME"`
}

// Validate is called by kong after parsing.
func (o OwnerFlags) Validate() error {
	return identity.ValidatePassword(o.Password)
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	logger := globals.logger()
	store, closeDB, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	return seed(ctx, store, s.Owner, 0, logger)
}

func seed(ctx context.Context, store storage.Store, owner OwnerFlags, bcryptCost int, logger *observability.Logger) error {
	roles, err := rbac.SeedPlatformRoles(ctx, store)
	if err != nil {
		return err
	}
	logger.WithField("roles", len(roles)).Info("Platform roles seeded")

	var superAdmin *identity.Role
	for _, r := range roles {
		if r.Name == identity.RoleSuperAdmin {
			superAdmin = r
		}
	}
	if superAdmin == nil {
		return errors.New("super_admin role missing after seeding")
	}

	u := &identity.User{
		Email:     owner.Email,
		FirstName: owner.FirstName,
		LastName:  owner.LastName,
		UserType:  identity.UserTypePlatformOwner,
		RoleIDs:   []string{superAdmin.ID},
		IsActive:  true,
	}
	u.Normalize()

	if existing, err := store.GetUserByEmail(ctx, u.Email); err == nil {
		logger.WithField("user_id", existing.ID).Info("Platform owner already exists")
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("failed to look up platform owner: %w", err)
	}

	if err := identity.ValidatePassword(owner.Password); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return err
	}
	if u.PasswordHash, err = auth.HashPassword(owner.Password, bcryptCost); err != nil {
		return err
	}
	if err := store.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to create platform owner: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"user_id": u.ID,
		"email":   u.Email,
	}).Info("Platform owner created")
	return nil
}
