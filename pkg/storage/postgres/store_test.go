package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

const (
	orgID  = "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"
	roleID = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	userID = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
)

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	assert.Equal(t, "", w.clause())

	w.add("name = ?", "ops")
	w.add("organization_id IS NULL")
	w.add("created_at < ?", fixedNow)

	assert.Equal(t, " WHERE name = $1 AND organization_id IS NULL AND created_at < $2", w.clause())
	assert.Len(t, w.args, 2)

	suffix, args := w.pageArgs(storage.NewPage(3, 20))
	assert.Equal(t, " ORDER BY created_at DESC LIMIT $3 OFFSET $4", suffix)
	assert.Equal(t, []interface{}{"ops", fixedNow, 20, 40}, args)
	assert.Len(t, w.args, 2, "pageArgs must not grow the builder")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    apperr.Kind
		message string
	}{
		{"no rows", sql.ErrNoRows, apperr.KindNotFound, "User not found"},
		{"email taken", &pq.Error{Code: uniqueViolation, Constraint: "users_email_key"}, apperr.KindConflict, "User already exists"},
		{"code taken", &pq.Error{Code: uniqueViolation, Constraint: "organizations_code_key"}, apperr.KindConflict, "Organization code already exists"},
		{"unknown unique", &pq.Error{Code: uniqueViolation, Constraint: "other"}, apperr.KindConflict, "User already exists"},
		{"missing org", &pq.Error{Code: foreignKeyViolation}, apperr.KindValidation, "Referenced organization does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "User")
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain, "User"))
	assert.NoError(t, mapError(nil, "User"))
}

func TestCreateOrganization(t *testing.T) {
	s, mock := newMockStore(t)

	o := &identity.Organization{Name: "Acme", Type: identity.OrgTypeCustomer, Code: "ACME", IsActive: true}
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs(sqlmock.AnyArg(), "Acme", identity.OrgTypeCustomer, "ACME", "", "", "", "",
			true, nil, nil, identity.OnboardingCompleted, 1, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateOrganization(context.Background(), o))
	assert.True(t, identity.IsValidID(o.ID))
	assert.Equal(t, 1, o.Version)
	assert.Equal(t, identity.OnboardingCompleted, o.OnboardingStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrganizationDuplicateCode(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "organizations_code_key"})

	err := s.CreateOrganization(context.Background(), &identity.Organization{Name: "Acme", Code: "ACME"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "Organization code already exists", err.Error())
}

func organizationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "type", "code", "description", "contact_email", "contact_phone", "address",
		"is_active", "onboarded_by", "onboarded_at", "onboarding_status", "version", "created_at", "updated_at",
	})
}

func TestGetOrganization(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = \\$1").
		WithArgs(orgID).
		WillReturnRows(organizationRows().AddRow(
			orgID, "Acme", "customer", "ACME", "", "ops@acme.test", "", "",
			true, userID, fixedNow, "completed", 3, fixedNow, fixedNow,
		))

	o, err := s.GetOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", o.Name)
	assert.Equal(t, identity.OrgTypeCustomer, o.Type)
	assert.Equal(t, userID, o.OnboardedBy)
	require.NotNil(t, o.OnboardedAt)
	assert.Equal(t, 3, o.Version)
}

func TestGetOrganizationNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM organizations").WithArgs(orgID).WillReturnRows(organizationRows())

	_, err := s.GetOrganization(context.Background(), orgID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "Organization not found", err.Error())

	_, err = s.GetOrganization(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrganizations(t *testing.T) {
	s, mock := newMockStore(t)
	active := true

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM organizations WHERE type = \\$1 AND is_active = \\$2").
		WithArgs(identity.OrgTypeLogistics, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE type = \\$1 AND is_active = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(identity.OrgTypeLogistics, true, 10, 10).
		WillReturnRows(organizationRows().AddRow(
			orgID, "Haul", "logistics", "HAUL", "", "", "", "",
			true, nil, nil, "completed", 1, fixedNow, fixedNow,
		))

	res, err := s.ListOrganizations(context.Background(),
		storage.OrganizationFilter{Type: identity.OrgTypeLogistics, IsActive: &active},
		storage.NewPage(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 11, res.Total)
	assert.Equal(t, 2, res.TotalPages())
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].OnboardedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrganizationsMalformedID(t *testing.T) {
	s, mock := newMockStore(t)

	res, err := s.ListOrganizations(context.Background(), storage.OrganizationFilter{ID: "nope"}, storage.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleVersionConflict(t *testing.T) {
	s, mock := newMockStore(t)

	r := &identity.Role{ID: roleID, Name: "ops", Permissions: []string{"read"}, IsActive: true, Version: 2}
	mock.ExpectExec("UPDATE roles SET").
		WithArgs(roleID, 2, "ops", "", sqlmock.AnyArg(), true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM roles WHERE id = \\$1\\)").
		WithArgs(roleID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.UpdateRole(context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, 2, r.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE roles SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.UpdateRole(context.Background(), &identity.Role{ID: roleID, Version: 1})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateRoleBumpsVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE roles SET").WillReturnResult(sqlmock.NewResult(0, 1))

	r := &identity.Role{ID: roleID, Name: "ops", Version: 4}
	require.NoError(t, s.UpdateRole(context.Background(), r))
	assert.Equal(t, 5, r.Version)
	assert.Equal(t, fixedNow, r.UpdatedAt)
}

func roleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "scope", "organization_id", "description", "permissions",
		"is_active", "version", "created_at", "updated_at",
	})
}

func TestFindRolePlatformScope(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE name = \\$1 AND scope = \\$2 AND organization_id IS NULL").
		WithArgs("admin", identity.ScopePlatform).
		WillReturnRows(roleRows().AddRow(roleID, "admin", "platform", nil, "", "{*}", true, 1, fixedNow, fixedNow))

	r, err := s.FindRole(context.Background(), "admin", identity.ScopePlatform, "")
	require.NoError(t, err)
	assert.Equal(t, "", r.OrganizationID)
	assert.Equal(t, []string{"*"}, r.Permissions)
}

func TestGetRolesSkipsMalformedIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(roleRows().AddRow(roleID, "viewer", "organization", orgID, "", "{read}", true, 1, fixedNow, fixedNow))

	roles, err := s.GetRoles(context.Background(), []string{roleID, "garbage"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, orgID, roles[0].OrganizationID)

	roles, err = s.GetRoles(context.Background(), []string{"garbage"})
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoleNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM roles WHERE id = \\$1").WithArgs(roleID).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteRole(context.Background(), roleID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "user_type", "organization_id",
		"role_ids", "is_active", "last_login", "version", "created_at", "updated_at",
	})
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "users_email_key"})

	err := s.CreateUser(context.Background(), &identity.User{Email: "a@b.test", UserType: identity.UserTypePlatformOwner})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "User already exists", err.Error())
}

func TestGetUserByEmailNormalizes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("jane@acme.test").
		WillReturnRows(userRows().AddRow(
			userID, "jane@acme.test", "hash", "Jane", "Doe", "customer", orgID,
			"{"+roleID+"}", true, nil, 1, fixedNow, fixedNow,
		))

	u, err := s.GetUserByEmail(context.Background(), "  Jane@Acme.TEST ")
	require.NoError(t, err)
	assert.Equal(t, identity.UserTypeCustomer, u.UserType)
	assert.Equal(t, orgID, u.OrganizationID)
	assert.Equal(t, []string{roleID}, u.RoleIDs)
	assert.Nil(t, u.LastLogin)
}

func TestListUsersByRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE organization_id = \\$1 AND user_type = \\$2 AND role_ids && \\$3::uuid\\[\\]").
		WithArgs(orgID, identity.UserTypeCustomer, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE (.+) LIMIT \\$4 OFFSET \\$5").
		WithArgs(orgID, identity.UserTypeCustomer, sqlmock.AnyArg(), 10, 0).
		WillReturnRows(userRows())

	res, err := s.ListUsers(context.Background(), storage.UserFilter{
		OrganizationID: orgID,
		UserType:       identity.UserTypeCustomer,
		RoleIDs:        []string{roleID},
	}, storage.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersUnknownRoleMatchesNothing(t *testing.T) {
	s, mock := newMockStore(t)

	res, err := s.ListUsers(context.Background(), storage.UserFilter{RoleIDs: []string{}}, storage.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLogin(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET last_login = \\$2 WHERE id = \\$1").
		WithArgs(userID, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RecordLogin(context.Background(), userID, fixedNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(version\\), 0\\) FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(3, "Create users table").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS organizations").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreOrdered(t *testing.T) {
	migrations := GetMigrations()
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Description)
	}
}
