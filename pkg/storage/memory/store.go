package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// Store holds all entities in maps guarded by one lock.
type Store struct {
	mu    sync.RWMutex
	users map[string]*identity.User
	roles map[string]*identity.Role
	orgs  map[string]*identity.Organization
	seq   int64

	// Now is the clock used for timestamps.
	Now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]*identity.User),
		roles: make(map[string]*identity.Role),
		orgs:  make(map[string]*identity.Organization),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// stamp returns a creation time that is strictly increasing so that newest
// first ordering is stable even when the clock is frozen.
func (s *Store) stamp() time.Time {
	s.seq++
	return s.Now().Add(time.Duration(s.seq) * time.Nanosecond)
}

func copyUser(u *identity.User) *identity.User {
	c := *u
	c.RoleIDs = append([]string{}, u.RoleIDs...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func copyRole(r *identity.Role) *identity.Role {
	c := *r
	c.Permissions = append([]string{}, r.Permissions...)
	return &c
}

func copyOrg(o *identity.Organization) *identity.Organization {
	c := *o
	if o.OnboardedAt != nil {
		t := *o.OnboardedAt
		c.OnboardedAt = &t
	}
	return &c
}

// paginate sorts newest first and slices out page p.
func paginate[T any](items []T, created func(T) time.Time, p storage.Page) *storage.ListResult[T] {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
	res := &storage.ListResult[T]{Items: []T{}, Total: len(items), Page: p}
	start := p.Offset()
	if start >= len(items) {
		return res
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	res.Items = append(res.Items, items[start:end]...)
	return res
}

// Users

func (s *Store) CreateUser(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := identity.NormalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return apperr.Conflict("User already exists")
		}
	}
	if u.OrganizationID != "" {
		if _, ok := s.orgs[u.OrganizationID]; !ok {
			return apperr.Validation("organizationId", "Referenced organization does not exist")
		}
	}
	if u.ID == "" {
		u.ID = identity.NewID()
	}
	if u.RoleIDs == nil {
		u.RoleIDs = []string{}
	}
	now := s.stamp()
	u.CreatedAt, u.UpdatedAt, u.Version = now, now, 1
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = identity.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (s *Store) UpdateUser(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[u.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	if current.Version != u.Version {
		return apperr.Conflict("User was modified concurrently")
	}
	for id, other := range s.users {
		if id != u.ID && other.Email == u.Email {
			return apperr.Conflict("User already exists")
		}
	}
	if u.OrganizationID != "" {
		if _, ok := s.orgs[u.OrganizationID]; !ok {
			return apperr.Validation("organizationId", "Referenced organization does not exist")
		}
	}
	u.Version++
	u.UpdatedAt = s.Now()
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) ListUsers(_ context.Context, f storage.UserFilter, p storage.Page) (*storage.ListResult[*identity.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[string]bool
	if f.RoleIDs != nil {
		wanted = make(map[string]bool, len(f.RoleIDs))
		for _, id := range f.RoleIDs {
			wanted[id] = true
		}
	}

	var items []*identity.User
	for _, u := range s.users {
		if f.OrganizationID != "" && u.OrganizationID != f.OrganizationID {
			continue
		}
		if f.UserType != "" && u.UserType != f.UserType {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		if wanted != nil && !holdsAny(u, wanted) {
			continue
		}
		items = append(items, copyUser(u))
	}
	return paginate(items, func(u *identity.User) time.Time { return u.CreatedAt }, p), nil
}

func holdsAny(u *identity.User, ids map[string]bool) bool {
	for _, id := range u.RoleIDs {
		if ids[id] {
			return true
		}
	}
	return false
}

func (s *Store) ListUserIDsByRole(_ context.Context, roleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for _, u := range s.users {
		if u.HasRole(roleID) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) RecordLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	u.LastLogin = &at
	return nil
}

// Roles

func roleKey(name string, scope identity.RoleScope, orgID string) string {
	return string(scope) + "/" + orgID + "/" + name
}

func (s *Store) CreateRole(_ context.Context, r *identity.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := roleKey(r.Name, r.Scope, r.OrganizationID)
	for _, existing := range s.roles {
		if roleKey(existing.Name, existing.Scope, existing.OrganizationID) == key {
			return apperr.Conflict("Role already exists for this scope and organization")
		}
	}
	if r.OrganizationID != "" {
		if _, ok := s.orgs[r.OrganizationID]; !ok {
			return apperr.Validation("organizationId", "Referenced organization does not exist")
		}
	}
	if r.ID == "" {
		r.ID = identity.NewID()
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	now := s.stamp()
	r.CreatedAt, r.UpdatedAt, r.Version = now, now, 1
	s.roles[r.ID] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, id string) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, apperr.NotFound("Role")
	}
	return copyRole(r), nil
}

func (s *Store) GetRoles(_ context.Context, ids []string) ([]*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := []*identity.Role{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok && !seen[id] {
			seen[id] = true
			roles = append(roles, copyRole(r))
		}
	}
	return roles, nil
}

func (s *Store) FindRole(_ context.Context, name string, scope identity.RoleScope, orgID string) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.Name == name && r.Scope == scope && r.OrganizationID == orgID {
			return copyRole(r), nil
		}
	}
	return nil, apperr.NotFound("Role")
}

func (s *Store) UpdateRole(_ context.Context, r *identity.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[r.ID]
	if !ok {
		return apperr.NotFound("Role")
	}
	if current.Version != r.Version {
		return apperr.Conflict("Role was modified concurrently")
	}
	key := roleKey(r.Name, current.Scope, current.OrganizationID)
	for id, other := range s.roles {
		if id != r.ID && roleKey(other.Name, other.Scope, other.OrganizationID) == key {
			return apperr.Conflict("Role already exists for this scope and organization")
		}
	}
	r.Scope, r.OrganizationID = current.Scope, current.OrganizationID
	r.Version++
	r.UpdatedAt = s.Now()
	s.roles[r.ID] = copyRole(r)
	return nil
}

func (s *Store) ListRoles(_ context.Context, f storage.RoleFilter, p storage.Page) (*storage.ListResult[*identity.Role], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*identity.Role
	for _, r := range s.roles {
		if f.OrganizationID != "" && r.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Scope != "" && r.Scope != f.Scope {
			continue
		}
		if f.Name != "" && r.Name != f.Name {
			continue
		}
		if f.IsActive != nil && r.IsActive != *f.IsActive {
			continue
		}
		items = append(items, copyRole(r))
	}
	return paginate(items, func(r *identity.Role) time.Time { return r.CreatedAt }, p), nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return apperr.NotFound("Role")
	}
	delete(s.roles, id)
	return nil
}

// Organizations

func (s *Store) CreateOrganization(_ context.Context, o *identity.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orgs {
		if existing.Code == o.Code {
			return apperr.Conflict("Organization code already exists")
		}
	}
	if o.ID == "" {
		o.ID = identity.NewID()
	}
	if o.OnboardingStatus == "" {
		o.OnboardingStatus = identity.OnboardingCompleted
	}
	now := s.stamp()
	o.CreatedAt, o.UpdatedAt, o.Version = now, now, 1
	s.orgs[o.ID] = copyOrg(o)
	return nil
}

func (s *Store) GetOrganization(_ context.Context, id string) (*identity.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, apperr.NotFound("Organization")
	}
	return copyOrg(o), nil
}

func (s *Store) UpdateOrganization(_ context.Context, o *identity.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orgs[o.ID]
	if !ok {
		return apperr.NotFound("Organization")
	}
	if current.Version != o.Version {
		return apperr.Conflict("Organization was modified concurrently")
	}
	for id, other := range s.orgs {
		if id != o.ID && other.Code == o.Code {
			return apperr.Conflict("Organization code already exists")
		}
	}
	o.Version++
	o.UpdatedAt = s.Now()
	s.orgs[o.ID] = copyOrg(o)
	return nil
}

func (s *Store) ListOrganizations(_ context.Context, f storage.OrganizationFilter, p storage.Page) (*storage.ListResult[*identity.Organization], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*identity.Organization
	for _, o := range s.orgs {
		if f.ID != "" && o.ID != f.ID {
			continue
		}
		if f.Type != "" && o.Type != f.Type {
			continue
		}
		if f.IsActive != nil && o.IsActive != *f.IsActive {
			continue
		}
		if f.OnboardingStatus != "" && o.OnboardingStatus != f.OnboardingStatus {
			continue
		}
		if f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		items = append(items, copyOrg(o))
	}
	return paginate(items, func(o *identity.Organization) time.Time { return o.CreatedAt }, p), nil
}

func (s *Store) DeleteOrganization(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[id]; !ok {
		return apperr.NotFound("Organization")
	}
	for _, r := range s.roles {
		if r.OrganizationID == id {
			return apperr.Validation("organizationId", storage.MsgOrganizationInUse)
		}
	}
	for _, u := range s.users {
		if u.OrganizationID == id {
			return apperr.Validation("organizationId", storage.MsgOrganizationInUse)
		}
	}
	delete(s.orgs, id)
	return nil
}
