// Package identity holds the entities shared by the auth and platform
// services: users, roles and organizations, plus the claims snapshot derived
// from them at login time.
//
// Both services read and write the same user records. They do so through this
// single definition and two narrowed projections:
//
//   - UserView is what either service returns to callers (no secrets).
//   - UserPatch is the platform-side write projection (profile, type, tenant,
//     roles, active flag; never credentials).
//
// Credentials are only touched by the auth service, which works on User
// directly.
package identity
