// Package users provides user administration for the platform service.
//
// Users are created through the auth service's registration flow (see
// Registrar) so that password hashing and role defaults live in one place.
// Every other mutation happens here. Whenever a change touches the claims
// snapshot (roles, tenant, type or active flag) the user's cached session is
// dropped so the next refresh picks up the new state.
//
// Customers only see and manage customer users of their own organization and
// can never grant platform roles or platform owner access.
package users
