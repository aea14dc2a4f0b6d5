// Package orgs provides organization (tenant) management for the platform service.
//
// # Overview
//
// Organizations are the tenants of the platform. Every customer user and
// every organization-scoped role belongs to exactly one. Organizations are
// created directly by platform administrators or through the onboarding
// flow (pkg/onboarding), and are only ever soft deleted.
//
// # Authorization
//
//	create            admin, super_admin
//	update            org_admin, admin, super_admin
//	change type/code  super_admin
//	delete            super_admin
//
// Customers only see their own organization unless they hold admin or
// super_admin and the customer admin bypass is enabled.
//
// # Usage
//
//	svc := orgs.NewService(store, gate, lists, logger)
//	org, err := svc.Create(ctx, claims, orgs.CreateRequest{Name: "Acme", Code: "acme"})
//	org, err = svc.Update(ctx, claims, org.ID, orgs.UpdateRequest{Name: &name, Version: org.Version})
package orgs
