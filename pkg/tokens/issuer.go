package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	// refreshCacheMultiplier sizes the refresh_token entry TTL relative to the
	// access TTL. It is independent of the refresh token's own expiry, so with
	// a 15m access TTL a refresh token stops working after 6h even though it
	// is signed for 7d.
	refreshCacheMultiplier = 24
)

// Config configures token issuance.
type Config struct {
	Secret        string
	Issuer        string
	AccessExpiry  string
	RefreshExpiry string
}

// Pair is an issued token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccessClaims is the access token payload.
type AccessClaims struct {
	identity.Claims
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload. It only identifies the user.
type RefreshClaims struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Resolver reloads a user's current claims. It returns a NotFound error for
// unknown users.
type Resolver interface {
	ResolveClaims(ctx context.Context, userID string) (identity.Claims, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, userID string) (identity.Claims, error)

// ResolveClaims calls f.
func (f ResolverFunc) ResolveClaims(ctx context.Context, userID string) (identity.Claims, error) {
	return f(ctx, userID)
}

// Issuer signs, verifies and rotates tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	cache      cache.Cache
	now        func() time.Time
}

// NewIssuer creates an issuer storing session state in c.
func NewIssuer(cfg Config, c cache.Cache) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if c == nil {
		return nil, errors.New("session cache is required")
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  ParseTTLDuration(cfg.AccessExpiry),
		refreshTTL: ParseTTLDuration(cfg.RefreshExpiry),
		cache:      c,
		now:        time.Now,
	}, nil
}

// RefreshKey is the cache key of a user's live refresh token.
func RefreshKey(userID string) string {
	return "refresh_token:" + userID
}

// SessionKey is the cache key of a user's claims snapshot.
func SessionKey(userID string) string {
	return "user_session:" + userID
}

func (i *Issuer) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Issue signs a new pair for the snapshot and records the refresh token and
// session snapshot in the cache, replacing any previous ones.
func (i *Issuer) Issue(ctx context.Context, claims identity.Claims) (*Pair, error) {
	access, err := i.sign(&AccessClaims{
		Claims:           claims,
		Type:             typeAccess,
		RegisteredClaims: i.registered(claims.UserID, i.accessTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := i.sign(&RefreshClaims{
		UserID:           claims.UserID,
		Type:             typeRefresh,
		RegisteredClaims: i.registered(claims.UserID, i.refreshTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	if err := i.cache.Set(ctx, RefreshKey(claims.UserID), []byte(refresh), refreshCacheMultiplier*i.accessTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	snapshot, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := i.cache.Set(ctx, SessionKey(claims.UserID), snapshot, i.accessTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.accessTTL / time.Second),
	}, nil
}

func (i *Issuer) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	return err
}

// VerifyAccess validates an access token and returns its claims snapshot.
func (i *Issuer) VerifyAccess(token string) (identity.Claims, error) {
	var claims AccessClaims
	if err := i.parse(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Claims{}, apperr.Wrap(apperr.KindUnauthorized, err, "Token expired")
		}
		return identity.Claims{}, apperr.Wrap(apperr.KindUnauthorized, err, "Invalid token")
	}
	if claims.Type != typeAccess {
		return identity.Claims{}, apperr.Unauthorized("Invalid token type")
	}
	return claims.Claims, nil
}

// VerifyRefresh validates a refresh token's signature and type. It does not
// consult the cache.
func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(token, &claims); err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "Invalid refresh token")
	}
	if claims.Type != typeRefresh || claims.UserID == "" {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}
	return &claims, nil
}

// Refresh exchanges the user's live refresh token for a new pair. The
// presented token must be the one currently cached, and the user is reloaded
// so deactivation and role changes take effect.
func (i *Issuer) Refresh(ctx context.Context, token string, resolver Resolver) (*Pair, identity.Claims, error) {
	rc, err := i.VerifyRefresh(token)
	if err != nil {
		return nil, identity.Claims{}, err
	}

	stored, err := i.cache.Get(ctx, RefreshKey(rc.UserID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, identity.Claims{}, apperr.Unauthorized("Invalid refresh token")
	} else if err != nil {
		return nil, identity.Claims{}, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if string(stored) != token {
		return nil, identity.Claims{}, apperr.Unauthorized("Invalid refresh token")
	}

	claims, err := resolver.ResolveClaims(ctx, rc.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, identity.Claims{}, apperr.Unauthorized("User not found")
	} else if err != nil {
		return nil, identity.Claims{}, fmt.Errorf("failed to resolve user: %w", err)
	}
	if !claims.IsActive {
		return nil, identity.Claims{}, apperr.Unauthorized("Account is deactivated")
	}

	pair, err := i.Issue(ctx, claims)
	if err != nil {
		return nil, identity.Claims{}, err
	}
	return pair, claims, nil
}

// Logout removes the user's refresh token and session snapshot.
func (i *Issuer) Logout(ctx context.Context, userID string) error {
	if err := i.cache.Delete(ctx, RefreshKey(userID), SessionKey(userID)); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// InvalidateSession drops the cached claims snapshot of a user.
func (i *Issuer) InvalidateSession(ctx context.Context, userID string) error {
	if err := i.cache.Delete(ctx, SessionKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// Session returns the cached claims snapshot, or nil when there is none.
func (i *Issuer) Session(ctx context.Context, userID string) (*identity.Claims, error) {
	data, err := i.cache.Get(ctx, SessionKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var claims identity.Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &claims, nil
}
