package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/ports"
	httpinfra "garagelink.app/client/internal/infrastructure/http"
)

// HTTPAuthGateway implements ports.AuthGateway against the backend's /auth
// endpoints. It uses its own client, never the authenticated transport, so
// refresh traffic cannot recurse into the pipeline.
type HTTPAuthGateway struct {
	baseURL        string
	clientIdentity string
	userAgent      string
	httpClient     *http.Client
}

// GatewayConfig configures HTTPAuthGateway.
type GatewayConfig struct {
	BaseURL        string
	ClientIdentity string
	UserAgent      string
	Timeout        time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// NewHTTPAuthGateway creates a gateway.
func NewHTTPAuthGateway(cfg GatewayConfig) *HTTPAuthGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPAuthGateway{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		clientIdentity: cfg.ClientIdentity,
		userAgent:      cfg.UserAgent,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	ClientIdentity string `json:"clientIdentity"`
}

type refreshRequest struct {
	RefreshToken   string `json:"refreshToken"`
	ClientIdentity string `json:"clientIdentity"`
}

type revokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges email and password for a credential pair and user record.
// Rejections come back as *domain.APIError.
func (g *HTTPAuthGateway) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	resp, err := g.post(ctx, "/auth/login", loginRequest{
		Email:          email,
		Password:       password,
		ClientIdentity: g.clientIdentity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send login request: %w", err)
	}
	if !httpinfra.IsSuccess(resp.StatusCode) {
		return nil, httpinfra.ParseResponseError(resp)
	}
	defer resp.Body.Close()

	var result domain.LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.Token == "" || result.RefreshToken == "" {
		return nil, fmt.Errorf("login response is missing tokens")
	}
	return &result, nil
}

// Refresh rotates the credential pair. A rejected refresh token yields
// domain.ErrRefreshFailed; anything that says nothing about the token's
// validity (network, timeout, 5xx, bad body) yields domain.ErrRefreshTransport.
func (g *HTTPAuthGateway) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshedTokens, error) {
	resp, err := g.post(ctx, "/auth/refresh", refreshRequest{
		RefreshToken:   refreshToken,
		ClientIdentity: g.clientIdentity,
	})
	if err != nil {
		return nil, domain.NewAuthError(domain.KindRefreshTransport, "send refresh request", err)
	}

	if !httpinfra.IsSuccess(resp.StatusCode) {
		apiErr := httpinfra.ParseResponseError(resp)
		if isCredentialRejection(resp.StatusCode) {
			return nil, domain.NewAuthError(domain.KindRefreshFailed, "", apiErr)
		}
		return nil, domain.NewAuthError(domain.KindRefreshTransport, "", apiErr)
	}
	defer resp.Body.Close()

	var tokens domain.RefreshedTokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, domain.NewAuthError(domain.KindRefreshTransport, "decode refresh response", err)
	}
	if tokens.Token == "" || tokens.RefreshToken == "" {
		return nil, domain.NewAuthError(domain.KindRefreshTransport, "refresh response is missing tokens", nil)
	}
	return &tokens, nil
}

// Revoke asks the server to drop a refresh token.
func (g *HTTPAuthGateway) Revoke(ctx context.Context, refreshToken string) error {
	resp, err := g.post(ctx, "/auth/logout", revokeRequest{RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("failed to send revoke request: %w", err)
	}
	if !httpinfra.IsSuccess(resp.StatusCode) {
		return httpinfra.ParseResponseError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (g *HTTPAuthGateway) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	if g.clientIdentity != "" {
		req.Header.Set(httpinfra.HeaderClientIdentity, g.clientIdentity)
	}

	return g.httpClient.Do(req)
}

// isCredentialRejection reports statuses meaning the refresh token itself
// is invalid, expired or revoked.
func isCredentialRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}

var _ ports.AuthGateway = (*HTTPAuthGateway)(nil)
