package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_RunsFuncsInOrder(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	srv := &http.Server{Addr: "127.0.0.1:0"}
	sm := NewShutdownManager(logger, time.Second, srv)

	var order []string
	sm.RegisterShutdownFunc(func(context.Context) error {
		order = append(order, "cache")
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		order = append(order, "db")
		return nil
	})

	assert.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"cache", "db"}, order)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, 0)

	called := false
	sm.RegisterShutdownFunc(func(context.Context) error {
		return errors.New("close failed")
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		called = true
		return nil
	})

	err := sm.Shutdown()
	assert.ErrorContains(t, err, "close failed")
	assert.True(t, called, "later functions still run")
}
