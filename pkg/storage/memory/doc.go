// Package memory is an in-process implementation of the entity stores. It
// enforces the same uniqueness and version rules as the PostgreSQL store and
// backs the service tests and single-binary local runs.
package memory
