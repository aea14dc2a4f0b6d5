// Package auth implements the authentication use cases: registration, login,
// token refresh, logout and profile lookup.
//
// # Overview
//
// Users authenticate with email and password. Passwords are stored as bcrypt
// hashes. A successful registration, login or refresh resolves the user's
// roles into an identity.Claims snapshot and hands it to the tokens.Issuer,
// which signs the access/refresh pair and mirrors the snapshot in the session
// cache.
//
//	svc := auth.NewService(store, issuer, logger,
//		auth.WithMetrics(metrics),
//		auth.WithAuditLogger(auditLogger),
//	)
//
//	session, err := svc.Login(ctx, auth.LoginRequest{
//		Email:    "jane@acme.test",
//		Password: "correct horse",
//	})
//	// session.AccessToken, session.RefreshToken, session.User
//
// # Registration Rules
//
// Customers must reference an existing, active organization. When no role
// ids are supplied the user receives the viewer role of their organization
// (customers) or of the platform (platform owners). Creating platform owner
// accounts, or granting platform roles to customers, requires the caller
// passed as RegisterRequest.Actor to be a platform owner.
//
// # Profile
//
// Profile always reads the user from the store rather than the session
// snapshot, so deactivation and role changes are visible immediately.
package auth
