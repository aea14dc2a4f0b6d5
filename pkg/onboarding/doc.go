// Package onboarding creates a tenant end to end: the organization, its
// default role set and its first administrator.
//
// The flow spans two services and is not transactional. Saga runs the steps
// in order and compensates on failure:
//
//  1. create organization            (onboardingStatus=pending)
//  2. create org_admin, manager,
//     operator, viewer in parallel
//  3. register the admin user        (through a Registrar)
//  4. mark the organization completed
//
// When a step after the first fails, the roles and the organization are hard
// deleted again. If that is not possible (the auth service may have created
// the user before failing) the organization is left failed, and Reconciler
// settles it later: organizations that already have users are completed,
// the rest are removed.
//
// Registrar abstracts the auth service. HTTPRegistrar calls it over HTTP,
// forwarding the caller's bearer token; LocalRegistrar calls an in-process
// auth.Service.
package onboarding
