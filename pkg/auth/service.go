package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
	"github.com/platinummonkey/bulwark/pkg/tokens"
)

// RegisterRequest is the auth-side write projection of a user.
type RegisterRequest struct {
	Email          string            `json:"email"`
	Password       string            `json:"password"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	OrganizationID string            `json:"organizationId,omitempty"`
	RoleIDs        []string          `json:"roleIds,omitempty"`
	UserType       identity.UserType `json:"userType,omitempty"`

	// Actor is the authenticated caller, nil for self-registration.
	Actor *identity.Claims `json:"-"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the token envelope returned by register, login and refresh.
type Session struct {
	User         identity.UserView `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresIn    int64             `json:"expiresIn"`
}

// Service implements the authentication use cases.
type Service struct {
	store      storage.Store
	issuer     *tokens.Issuer
	logger     *observability.Logger
	metrics    *observability.Metrics
	audit      audit.Logger
	lists      *cache.ListCache
	bcryptCost int
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records auth events and token issuance.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditLogger records auth events to an audit log.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithListCache drops cached user lists when a user registers.
func WithListCache(l *cache.ListCache) Option {
	return func(s *Service) { s.lists = l }
}

// WithBcryptCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService creates an auth service.
func NewService(store storage.Store, issuer *tokens.Issuer, logger *observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		issuer: issuer,
		logger: logger,
		audit:  audit.NopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := identity.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	u := &identity.User{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		UserType:       req.UserType,
		OrganizationID: req.OrganizationID,
		IsActive:       true,
	}
	u.Normalize()
	if err := u.ValidateProfile(); err != nil {
		return nil, err
	}

	actorIsOwner := req.Actor != nil && req.Actor.IsPlatformOwner()
	if u.UserType == identity.UserTypePlatformOwner && !actorIsOwner {
		return nil, apperr.Forbidden("Only platform owners can create platform owner accounts")
	}

	if u.OrganizationID != "" {
		org, err := s.store.GetOrganization(ctx, u.OrganizationID)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && !org.IsActive) {
			return nil, apperr.Validation("organizationId", "Organization not found")
		} else if err != nil {
			return nil, fmt.Errorf("failed to load organization: %w", err)
		}
	}

	roles, err := s.resolveRegistrationRoles(ctx, u, req.RoleIDs, actorIsOwner)
	if err != nil {
		return nil, err
	}
	u.RoleIDs = make([]string, 0, len(roles))
	for _, r := range roles {
		u.RoleIDs = append(u.RoleIDs, r.ID)
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, u.Email); err == nil {
		return nil, apperr.Conflict("User already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if s.lists != nil {
		if err := s.lists.Invalidate(ctx, cache.KindUsers); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate user lists")
		}
	}

	session, err := s.issue(ctx, u, roles, "register")
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("register", "success")
	s.record(ctx, &audit.Event{
		Type:           audit.EventAuthRegister,
		Status:         audit.StatusSuccess,
		ActorID:        actorID(req.Actor, u.ID),
		OrganizationID: u.OrganizationID,
		ResourceType:   audit.ResourceUser,
		ResourceID:     u.ID,
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":   u.ID,
		"user_type": string(u.UserType),
	}).Info("User registered")
	return session, nil
}

// resolveRegistrationRoles returns the roles a new user will hold: the
// requested ones after compatibility checks, or the default viewer role.
func (s *Service) resolveRegistrationRoles(ctx context.Context, u *identity.User, requested []string, actorIsOwner bool) ([]*identity.Role, error) {
	if len(requested) == 0 {
		return s.defaultRoles(ctx, u)
	}

	ids := dedupe(requested)
	for _, id := range ids {
		if !identity.IsValidID(id) {
			return nil, apperr.Validation("roleIds", "Invalid role ID")
		}
	}
	roles, err := s.store.GetRoles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	if len(roles) != len(ids) {
		return nil, apperr.Validation("roleIds", "One or more roles were not found")
	}

	for _, r := range roles {
		if !r.IsActive {
			return nil, apperr.Validation("roleIds", "Role %q is not active", r.Name)
		}
		switch r.Scope {
		case identity.ScopePlatform:
			if u.UserType == identity.UserTypeCustomer && !actorIsOwner {
				return nil, apperr.Forbidden("Only platform owners can assign platform roles")
			}
		case identity.ScopeOrganization:
			if r.OrganizationID != u.OrganizationID {
				return nil, apperr.Validation("roleIds", "Role %q does not belong to the user's organization", r.Name)
			}
		}
	}
	return roles, nil
}

func (s *Service) defaultRoles(ctx context.Context, u *identity.User) ([]*identity.Role, error) {
	scope, orgID, who := identity.ScopeOrganization, u.OrganizationID, "customer"
	if u.UserType == identity.UserTypePlatformOwner {
		scope, orgID, who = identity.ScopePlatform, "", "platform owner"
	}
	r, err := s.store.FindRole(ctx, identity.RoleViewer, scope, orgID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !r.IsActive) {
		return nil, apperr.Validation("roleIds", "Default role not found for %s", who)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load default role: %w", err)
	}
	return []*identity.Role{r}, nil
}

// Login verifies credentials and signs the user in.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validation("email", "Email and password are required")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, s.loginFailed(ctx, email, "unknown_email", apperr.Unauthorized("Invalid credentials"))
	} else if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := VerifyPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(ctx, email, "bad_password", apperr.Unauthorized("Invalid credentials"))
	}
	if !u.IsActive {
		return nil, s.loginFailed(ctx, email, "inactive", apperr.Unauthorized("Account is deactivated"))
	}

	roles, err := s.store.GetRoles(ctx, u.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	now := s.now().UTC()
	if err := s.store.RecordLogin(ctx, u.ID, now); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("Failed to record last login")
	} else {
		u.LastLogin = &now
	}

	session, err := s.issue(ctx, u, roles, "login")
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("login", "success")
	s.record(ctx, &audit.Event{
		Type:           audit.EventAuthLogin,
		Status:         audit.StatusSuccess,
		ActorID:        u.ID,
		ActorEmail:     u.Email,
		OrganizationID: u.OrganizationID,
		ResourceType:   audit.ResourceSession,
		ResourceID:     u.ID,
	})
	return session, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string, err error) error {
	s.metrics.RecordAuthEvent("login", "failure")
	s.record(ctx, &audit.Event{
		Type:         audit.EventAuthLoginFailed,
		Status:       audit.StatusFailure,
		ActorEmail:   email,
		ResourceType: audit.ResourceSession,
		Metadata:     map[string]interface{}{"reason": reason},
	})
	return err
}

// Refresh rotates the caller's refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperr.Validation("refreshToken", "Refresh token is required")
	}

	var (
		user  *identity.User
		roles []*identity.Role
	)
	resolver := tokens.ResolverFunc(func(ctx context.Context, userID string) (identity.Claims, error) {
		u, rs, err := s.loadUser(ctx, userID)
		if err != nil {
			return identity.Claims{}, err
		}
		user, roles = u, rs
		return identity.NewClaims(u, rs), nil
	})

	pair, _, err := s.issuer.Refresh(ctx, refreshToken, resolver)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			s.metrics.RecordAuthEvent("refresh", "failure")
			s.record(ctx, &audit.Event{
				Type:         audit.EventAuthRefreshFail,
				Status:       audit.StatusFailure,
				ResourceType: audit.ResourceSession,
				Message:      err.Error(),
			})
		}
		return nil, err
	}

	s.metrics.RecordAuthEvent("refresh", "success")
	s.metrics.RecordTokenIssued("refresh")
	return &Session{
		User:         identity.NewUserView(user, roles),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// Logout clears the user's refresh token and session snapshot. Cache
// failures are logged and do not fail the logout.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.issuer.Logout(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to clear session on logout")
	}
	s.metrics.RecordAuthEvent("logout", "success")
	s.record(ctx, &audit.Event{
		Type:         audit.EventAuthLogout,
		Status:       audit.StatusSuccess,
		ActorID:      userID,
		ResourceType: audit.ResourceSession,
		ResourceID:   userID,
	})
	return nil
}

// Profile returns the caller's user document with resolved roles, read from
// the store.
func (s *Service) Profile(ctx context.Context, userID string) (*identity.UserView, error) {
	u, roles, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}
	view := identity.NewUserView(u, roles)
	return &view, nil
}

// ResolveClaims rebuilds the claims snapshot of a user from the store.
func (s *Service) ResolveClaims(ctx context.Context, userID string) (identity.Claims, error) {
	u, roles, err := s.loadUser(ctx, userID)
	if err != nil {
		return identity.Claims{}, err
	}
	return identity.NewClaims(u, roles), nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*identity.User, []*identity.Role, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.store.GetRoles(ctx, u.RoleIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load roles: %w", err)
	}
	return u, roles, nil
}

func (s *Service) issue(ctx context.Context, u *identity.User, roles []*identity.Role, flow string) (*Session, error) {
	pair, err := s.issuer.Issue(ctx, identity.NewClaims(u, roles))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(flow)
	return &Session{
		User:         identity.NewUserView(u, roles),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func (s *Service) record(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit event")
	}
}

func actorID(actor *identity.Claims, fallback string) string {
	if actor != nil {
		return actor.UserID
	}
	return fallback
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
