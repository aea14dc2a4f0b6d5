// Package authz implements tenant-aware authorization for the platform
// service.
//
// Gate decides single-resource operations. Rules, first match wins:
//
//  1. Platform owners are granted everything.
//  2. Customers are denied platform-scoped resources, denied resources of
//     another organization unless they hold a bypass role (super_admin or
//     admin), and denied mutations unless they hold one of the roles listed
//     by RequiredRoles for the operation.
//  3. Everything else is denied.
//
// Callers must load the target first and return NotFound before asking the
// gate, so that a 403 never reveals whether a resource of another tenant
// exists beyond what a 404 already says.
//
// Scoper turns list requests into storage filters with the same tenant rules.
// Both only look at the claims snapshot; they never touch storage.
package authz
