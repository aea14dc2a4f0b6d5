// Package storage defines the persistence contracts for users, roles and
// organizations.
//
// Implementations:
//
//   - postgres: production backend (lib/pq), one table per entity, role
//     references stored as a uuid[] column on users.
//   - memory: in-process backend for tests and local development.
//
// Both implementations honour the same contracts:
//
//   - Get* returns an apperr NotFound error for unknown ids.
//   - Create* and Update* return an apperr Conflict error on unique key
//     violations (email, organization code, role name/scope/organization).
//   - Update* only applies when the stored version equals the entity's
//     Version; on success Version is incremented in place. A stale version is
//     a Conflict.
//   - List* sort by createdAt descending and paginate with 1-indexed pages.
//   - Soft deletes are updates of IsActive; Delete* are hard deletes used only
//     by onboarding compensation.
package storage
