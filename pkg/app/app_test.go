package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/config"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	registry := prometheus.NewRegistry()
	return &App{
		Config:   config.Default("bulwark-test"),
		Logger:   observability.NewLogger(observability.ErrorLevel, io.Discard),
		Registry: registry,
		Metrics:  observability.NewMetrics(registry),
		Health:   observability.NewHealthChecker("bulwark-test", Version, nil, nil),
	}
}

func TestOpenCache(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		a := newTestApp(t)
		a.Config.Cache.Backend = config.CacheBackendMemory
		require.NoError(t, a.openCache())
		assert.IsType(t, &cache.LocalCache{}, a.Cache)
		assert.Nil(t, a.Redis)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		a := newTestApp(t)
		a.Config.Cache.RedisURL = "redis://" + mr.Addr() + "/0"
		require.NoError(t, a.openCache())
		require.NotNil(t, a.Redis)
		assert.NoError(t, a.Cache.Ping(context.Background()))
		assert.NoError(t, a.Close(context.Background()))
	})

	t.Run("unreachable redis", func(t *testing.T) {
		a := newTestApp(t)
		a.Config.Cache.RedisURL = "redis://127.0.0.1:1/0"
		assert.Error(t, a.openCache())
	})
}

func TestOpenAudit(t *testing.T) {
	ctx := context.Background()

	a := newTestApp(t)
	l, err := a.openAudit()
	require.NoError(t, err)
	assert.IsType(t, &audit.LogrusLogger{}, l)

	path := filepath.Join(t.TempDir(), "audit.log")
	a.Config.Observability.AuditLogFile = path
	l, err = a.openAudit()
	require.NoError(t, err)
	require.NoError(t, l.Log(ctx, &audit.Event{Type: audit.EventAuthLogin, Status: audit.StatusSuccess, ActorID: "u1"}))
	require.NoError(t, a.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"auth.login"`)
	assert.Contains(t, string(data), `"service":"bulwark-test"`)

	a.Config.Observability.AuditLogFile = filepath.Join(t.TempDir(), "missing", "audit.log")
	_, err = a.openAudit()
	assert.ErrorContains(t, err, "failed to open audit log")
}

func TestCloseRunsInReverse(t *testing.T) {
	a := newTestApp(t)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		a.onShutdown(func(context.Context) error {
			order = append(order, i)
			if i == 1 {
				return errors.New("boom")
			}
			return nil
		})
	}

	err := a.Close(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.NoError(t, a.Close(context.Background()), "second close is a no-op")
}

func TestHealthMux(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.healthMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	a.Config.Observability.MetricsEnabled = false
	rec = httptest.NewRecorder()
	a.healthMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	a.healthMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	a.Config.Server.Host = "127.0.0.1"
	a.Config.Server.Port = "0"
	a.Config.Server.HealthPort = "0"
	a.Config.Server.ShutdownTimeout = time.Second

	closed := false
	a.onShutdown(func(context.Context) error {
		closed = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, http.NotFoundHandler()) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, closed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	admin := identity.Claims{
		UserID:         identity.NewID(),
		UserType:       identity.UserTypeCustomer,
		OrganizationID: identity.NewID(),
		RoleNames:      []string{identity.RoleAdmin},
	}
	foreign := &identity.Organization{ID: identity.NewID()}

	a := newTestApp(t)
	a.Audit = audit.NopLogger{}
	assert.NoError(t, a.Gate().Check(ctx, admin, authz.ActionRead, authz.OrganizationResource(foreign)))

	a.Config.Platform.CustomerAdminBypass = false
	err := a.Gate().Check(ctx, admin, authz.ActionRead, authz.OrganizationResource(foreign))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.AuthzDeniedTotal.WithLabelValues("organization", "read")))
}
