package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/contextkeys"
	"github.com/platinummonkey/bulwark/pkg/httputil"
)

// Registrar creates users in the auth service.
type Registrar interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
}

// RegisterPath is the auth service's registration route.
const RegisterPath = "/api/v1/auth/register"

// HTTPRegistrar registers users through the auth service's HTTP API.
type HTTPRegistrar struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRegistrar creates a registrar for the auth service at baseURL.
func NewHTTPRegistrar(baseURL string, timeout time.Duration) *HTTPRegistrar {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRegistrar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Register posts req to the auth service. The caller's access token is
// forwarded so the auth service sees who is acting.
func (r *HTTPRegistrar) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+RegisterPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := contextkeys.GetAccessToken(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := contextkeys.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read auth service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteError(resp.StatusCode, body)
	}

	var session auth.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode auth service response: %w", err)
	}
	return &session, nil
}

// remoteError turns an auth service error response back into an apperr.
func remoteError(status int, body []byte) error {
	var e httputil.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(body))
	}

	var kind apperr.Kind
	switch status {
	case http.StatusBadRequest:
		kind = apperr.KindValidation
	case http.StatusUnauthorized:
		kind = apperr.KindUnauthorized
	case http.StatusForbidden:
		kind = apperr.KindForbidden
	case http.StatusNotFound:
		kind = apperr.KindNotFound
	case http.StatusConflict:
		kind = apperr.KindConflict
	case http.StatusTooManyRequests:
		kind = apperr.KindTooManyRequests
	default:
		return fmt.Errorf("auth service returned status %d: %s", status, e.Error)
	}
	return &apperr.Error{Kind: kind, Message: e.Error, Field: e.Field}
}

// LocalRegistrar registers users through an in-process auth service.
type LocalRegistrar struct {
	Auth *auth.Service
}

// Register delegates to the auth service.
func (r LocalRegistrar) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error) {
	return r.Auth.Register(ctx, req)
}
