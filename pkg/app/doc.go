// Package app wires the process-wide dependencies of the bulwark binaries:
// configuration, logging, tracing, the Postgres store, the cache backend,
// the token issuer and the metrics registry.
//
//	a, err := app.New(ctx, "bulwark-auth")
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = a.Serve(ctx, router)
package app
