package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/bulwark/pkg/app"
	"github.com/platinummonkey/bulwark/pkg/onboarding"
)

var runOnce = flag.Bool("run-once", false, "Reconcile once and exit")

func main() {
	flag.Parse()
	ctx := context.Background()

	a, err := app.New(ctx, "bulwark-reconciler")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close(context.Background())

	reconciler := onboarding.NewReconciler(a.Store, a.Lists, a.Metrics, a.Logger)
	staleAfter := a.Config.Reconcile.StaleAfter

	run := func() error {
		report, err := reconciler.Run(ctx, staleAfter)
		if err != nil {
			a.Logger.WithError(err).Error("Reconciliation failed")
			return err
		}
		a.Logger.WithFields(map[string]interface{}{
			"completed":   report.Completed,
			"compensated": report.Compensated,
			"failed":      report.Failed,
		}).Info("Reconciliation finished")
		return nil
	}

	if *runOnce {
		if err := run(); err != nil {
			a.Close(context.Background())
			os.Exit(1)
		}
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(a.Config.Reconcile.Schedule, func() { _ = run() }); err != nil {
		a.Logger.WithError(err).Error("Invalid reconcile schedule")
		a.Close(context.Background())
		os.Exit(1)
	}

	c.Start()
	a.Logger.WithFields(map[string]interface{}{
		"schedule":    a.Config.Reconcile.Schedule,
		"stale_after": staleAfter.String(),
	}).Info("Onboarding reconciler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	a.Logger.Info("Shutting down gracefully...")

	stopped := c.Stop()
	<-stopped.Done()
	a.Logger.Info("Reconciler stopped")
}
