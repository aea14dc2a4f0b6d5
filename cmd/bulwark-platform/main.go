package main

import (
	"context"
	"log"
	"os"

	"github.com/platinummonkey/bulwark/pkg/api"
	"github.com/platinummonkey/bulwark/pkg/app"
	"github.com/platinummonkey/bulwark/pkg/onboarding"
	"github.com/platinummonkey/bulwark/pkg/orgs"
	"github.com/platinummonkey/bulwark/pkg/rbac"
	"github.com/platinummonkey/bulwark/pkg/users"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "bulwark-platform")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	gate := a.Gate()
	// Users are created by the auth service so credentials never live here.
	registrar := onboarding.NewHTTPRegistrar(a.Config.Platform.AuthServiceURL, a.Config.Platform.AuthServiceTimeout)

	router := api.NewPlatformRouter(api.PlatformDeps{
		Organizations: orgs.NewService(a.Store, gate, a.Lists, a.Logger),
		Roles:         rbac.NewService(a.Store, gate, a.Lists, a.Issuer, a.Logger),
		Users:         users.NewService(a.Store, gate, a.Lists, a.Issuer, registrar, a.Logger),
		Onboarding:    onboarding.NewSaga(a.Store, gate, registrar, a.Lists, a.Metrics, a.Logger),
		Verifier:      a.Issuer,
		Health:        a.Health,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
		Audit:         a.Audit,
	})

	a.Logger.WithField("auth_service", a.Config.Platform.AuthServiceURL).Infof("Starting bulwark platform service %s", app.Version)
	if err := a.Serve(ctx, router); err != nil {
		a.Logger.WithError(err).Error("Platform service stopped with error")
		os.Exit(1)
	}
}
