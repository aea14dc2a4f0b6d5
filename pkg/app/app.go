package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/config"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage/postgres"
	"github.com/platinummonkey/bulwark/pkg/tokens"
)

// Version is stamped at build time.
var Version = "dev"

// App holds the process-wide dependencies shared by the bulwark binaries.
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	DB       *sql.DB
	Store    *postgres.Store
	Cache    cache.Cache
	Redis    *redis.Client // nil with the memory cache backend
	Lists    *cache.ListCache
	Issuer   *tokens.Issuer
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Audit    audit.Logger
	Health   *observability.HealthChecker

	shutdown []observability.ShutdownFunc
}

// New loads the configuration of serviceName and connects its dependencies.
// On error everything opened so far is released.
func New(ctx context.Context, serviceName string) (_ *App, err error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	if a.Audit, err = a.openAudit(); err != nil {
		return nil, err
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = observability.NewMetrics(a.Registry)

	tp, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return nil, err
	}
	a.onShutdown(func(ctx context.Context) error { return observability.ShutdownOTel(ctx, tp, logger) })

	a.DB, err = postgres.Open(ctx, cfg.Connection())
	if err != nil {
		return nil, err
	}
	a.onShutdown(func(context.Context) error { return a.DB.Close() })
	a.Store = postgres.NewStore(a.DB)
	observability.RegisterDBStats(a.Registry, a.DB, "bulwark")

	if err := a.openCache(); err != nil {
		return nil, err
	}
	a.Lists = cache.NewListCache(a.Cache, cfg.Cache.ListCacheTTL, logger)
	a.Lists.SetRecorder(a.Metrics)

	a.Issuer, err = tokens.NewIssuer(cfg.Tokens(), a.Cache)
	if err != nil {
		return nil, err
	}

	a.Health = observability.NewHealthChecker(serviceName, Version, a.DB, a.Cache)
	return a, nil
}

func (a *App) openCache() error {
	switch a.Config.Cache.Backend {
	case config.CacheBackendMemory:
		local, err := cache.NewLocalCache(a.Config.Cache.LocalSize)
		if err != nil {
			return err
		}
		a.Cache = local
	default:
		client, err := cache.NewRedisClient(a.Config.Redis())
		if err != nil {
			return err
		}
		a.Redis = client
		a.Cache = cache.NewRedisCache(client)
		a.onShutdown(func(context.Context) error { return client.Close() })
	}
	a.Logger.WithField("backend", a.Config.Cache.Backend).Info("Cache initialized")
	return nil
}

// openAudit writes audit events through the process logger and, when
// configured, to a dedicated append-only file.
func (a *App) openAudit() (audit.Logger, error) {
	base := audit.NewLogrusLogger(a.Logger.WithField("stream", "audit"))
	path := a.Config.Observability.AuditLogFile
	if path == "" {
		return base, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	a.onShutdown(func(context.Context) error { return f.Close() })

	file := audit.NewLogrusLogger(observability.NewLogger(observability.InfoLevel, f).WithField("service", a.Config.ServiceName))
	return audit.NewMultiLogger(base, file), nil
}

// Gate builds the authorization gate, reporting denials to the audit log
// and metrics.
func (a *App) Gate() *authz.Gate {
	return authz.NewGate(
		authz.WithCustomerAdminBypass(a.Config.Platform.CustomerAdminBypass),
		authz.WithObserver(&audit.DenialObserver{Logger: a.Audit, Metrics: a.Metrics}),
	)
}

func (a *App) onShutdown(fn observability.ShutdownFunc) {
	a.shutdown = append(a.shutdown, fn)
}

// Close releases the dependencies in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.shutdown = nil
	return firstErr
}

// Serve runs the API handler and the health/metrics server until ctx is
// cancelled or SIGINT/SIGTERM arrives, then drains both and releases the
// App's dependencies.
func (a *App) Serve(ctx context.Context, handler http.Handler) error {
	srvCfg := a.Config.Server
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   srvCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	}).Handler(handler)

	errWriter := a.Logger.Writer()
	a.onShutdown(func(context.Context) error { return errWriter.Close() })
	errorLog := log.New(errWriter, "", 0)
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(srvCfg.Host, srvCfg.Port),
		Handler:      otelhttp.NewHandler(corsHandler, a.Config.ServiceName),
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
		ErrorLog:     errorLog,
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(srvCfg.Host, srvCfg.HealthPort),
		Handler:     a.healthMux(),
		ReadTimeout: srvCfg.ReadTimeout,
		ErrorLog:    errorLog,
	}

	sm := observability.NewShutdownManager(a.Logger, srvCfg.ShutdownTimeout, apiServer, healthServer)
	sm.RegisterShutdownFunc(a.Close)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		srv := srv
		g.Go(func() error {
			a.Logger.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutting down gracefully...")
		return sm.Shutdown()
	})
	return g.Wait()
}

func (a *App) healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, a.Health)
	if a.Config.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, a.Registry)
	}
	return mux
}
