package main

import (
	"context"
	"log"
	"os"

	"github.com/platinummonkey/bulwark/pkg/api"
	"github.com/platinummonkey/bulwark/pkg/app"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/middleware"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "bulwark-auth")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	svc := auth.NewService(a.Store, a.Issuer, a.Logger,
		auth.WithMetrics(a.Metrics),
		auth.WithAuditLogger(a.Audit),
		auth.WithListCache(a.Lists),
	)

	var limiter *middleware.RateLimiter
	if a.Redis != nil {
		limiter = middleware.NewRateLimiter(a.Redis, a.Config.LoginRateLimit(), "login", a.Logger)
	} else {
		a.Logger.Warn("Login rate limiting disabled: it requires the redis cache backend")
	}

	router := api.NewAuthRouter(api.AuthDeps{
		Service:      svc,
		Verifier:     a.Issuer,
		LoginLimiter: limiter,
		Health:       a.Health,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
		Audit:        a.Audit,
	})

	a.Logger.Infof("Starting bulwark auth service %s", app.Version)
	if err := a.Serve(ctx, router); err != nil {
		a.Logger.WithError(err).Error("Auth service stopped with error")
		os.Exit(1)
	}
}
