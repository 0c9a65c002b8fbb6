package httpinfra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"garagelink.app/client/internal/auth"
	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/ports"
	"garagelink.app/client/internal/infrastructure/metrics"
)

// Headers attached to every outgoing call.
const (
	HeaderAuthorization  = "Authorization"
	HeaderClientIdentity = "X-Client-Identity"
	HeaderRequestID      = "X-Request-ID"
)

// Retry result label values.
const (
	RetryResultRetried   = "retried"
	RetryResultExhausted = "exhausted"
)

type retriedKey struct{}

// withRetried tags ctx as belonging to a call that was already resubmitted.
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx carries the resubmission tag.
func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// AuthTransportConfig configures AuthTransport.
type AuthTransportConfig struct {
	ClientIdentity string
	Logger         *zap.Logger
	Metrics        *metrics.Auth
}

// AuthTransport attaches the bearer token before a call is sent and handles a
// 401 on the way back by refreshing and resubmitting the call once.
type AuthTransport struct {
	base      http.RoundTripper
	repo      ports.TokenRepository
	refresher ports.Refresher
	validator *auth.Validator
	identity  string
	logger    *zap.Logger
	metrics   *metrics.Auth
}

// NewAuthTransport wraps base. A nil base uses http.DefaultTransport.
func NewAuthTransport(
	base http.RoundTripper,
	repo ports.TokenRepository,
	refresher ports.Refresher,
	validator *auth.Validator,
	cfg AuthTransportConfig,
) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if validator == nil {
		validator = auth.NewValidator(auth.DefaultPreRefreshThreshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &AuthTransport{
		base:      base,
		repo:      repo,
		refresher: refresher,
		validator: validator,
		identity:  cfg.ClientIdentity,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// The body may have to be sent twice.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		buf, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		req = req.Clone(ctx)
		req.Body = io.NopCloser(bytes.NewReader(buf))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	}

	token, err := t.prepareToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}
	return t.handleUnauthorized(req, token, resp)
}

// prepareToken returns the token to attach, refreshing first when the stored
// one is unusable or close to expiry. An empty token means no session.
func (t *AuthTransport) prepareToken(ctx context.Context) (string, error) {
	creds, err := t.repo.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}
	if creds == nil {
		return "", nil
	}

	verdict := t.validator.Assess(creds.AccessToken)
	if verdict == auth.VerdictUsable {
		return creds.AccessToken, nil
	}

	t.logger.Debug("refreshing before send", zap.Stringer("verdict", verdict))
	token, err := t.refresher.RequestRefresh(ctx, creds.AccessToken)
	if err == nil {
		return token, nil
	}
	// The current token is still valid, so a transient failure only defers
	// the rotation.
	if verdict == auth.VerdictPreRefresh && errors.Is(err, domain.ErrRefreshTransport) {
		t.logger.Warn("proactive refresh failed, sending current token", zap.Error(err))
		return creds.AccessToken, nil
	}
	return "", err
}

func (t *AuthTransport) handleUnauthorized(req *http.Request, sentToken string, resp *http.Response) (*http.Response, error) {
	ctx := req.Context()
	drainAndClose(resp)

	if IsRetried(ctx) {
		t.metrics.ObserveRetry(RetryResultExhausted)
		t.logger.Warn("retried call was rejected again",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		)
		return nil, domain.NewAuthError(domain.KindRetryExhausted, req.Method+" "+req.URL.Path, domain.ErrAuthExpired)
	}

	token, err := t.refresher.RequestRefresh(ctx, sentToken)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(withRetried(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}

	t.metrics.ObserveRetry(RetryResultRetried)
	t.logger.Debug("resubmitting call after refresh",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	resp, err = t.send(retry, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return t.handleUnauthorized(retry, token, resp)
	}
	return resp, nil
}

func (t *AuthTransport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set(HeaderAuthorization, "Bearer "+token)
	} else {
		out.Header.Del(HeaderAuthorization)
	}
	if t.identity != "" {
		out.Header.Set(HeaderClientIdentity, t.identity)
	}
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}
	return t.base.RoundTrip(out)
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*AuthTransport)(nil)
