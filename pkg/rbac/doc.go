// Package rbac provides role management for the platform service.
//
// # Overview
//
// Roles are named permission sets with a scope. Platform roles apply across
// the whole system and never belong to an organization; organization roles
// belong to exactly one tenant. A role's scope and organization are fixed at
// creation.
//
// # Built-in Roles
//
// Platform roles are seeded by bulwark-bootstrap:
//
//	super_admin  *
//	admin        *
//	viewer       read
//
// Organization roles are seeded for every onboarded organization:
//
//	org_admin  *
//	manager    read, write
//	operator   read, operate
//	viewer     read
//
// # Usage
//
//	svc := rbac.NewService(store, gate, lists, issuer, logger)
//	page, err := svc.List(ctx, claims, query)
//	role, err := svc.Create(ctx, claims, rbac.CreateRoleRequest{Name: "auditor", Permissions: []string{"read"}})
//
// Every operation takes the caller's claims snapshot. Single-role operations
// load the role first (404) and then consult the authorization gate (403), so
// callers cannot probe other tenants' role ids.
//
// Deleting a role is a soft delete. Because access tokens embed role names,
// renaming, deactivating or deleting a role drops the cached session
// snapshot of every user holding it.
//
// # Related Packages
//
//   - pkg/authz: authorization gate and list scoping
//   - pkg/storage: role persistence
//   - pkg/tokens: session invalidation
package rbac
