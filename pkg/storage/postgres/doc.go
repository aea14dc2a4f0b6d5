// Package postgres implements the entity stores on PostgreSQL through
// database/sql and lib/pq.
//
// Updates are optimistic: each row carries a version that must match for an
// update to apply, and a mismatch surfaces as an apperr conflict. Unique
// constraint violations are mapped to conflicts with caller-facing messages.
//
// Schema changes are applied with Migrate, which records applied versions in
// a schema_migrations table.
package postgres
