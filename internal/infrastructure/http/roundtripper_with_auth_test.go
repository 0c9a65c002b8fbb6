package httpinfra_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/testfixtures"
	authinfra "garagelink.app/client/internal/infrastructure/auth"
	httpinfra "garagelink.app/client/internal/infrastructure/http"
	"garagelink.app/client/internal/infrastructure/metrics"
	"garagelink.app/client/internal/infrastructure/storage"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RequestRefresh(ctx context.Context, staleToken string) (string, error) {
	args := m.Called(ctx, staleToken)
	return args.String(0), args.Error(1)
}

type seenRequest struct {
	Authorization string
	Identity      string
	RequestID     string
	Body          string
}

// recorder is a backend that records each request and answers with the
// status chosen by respond.
type recorder struct {
	mu      sync.Mutex
	seen    []seenRequest
	respond func(r *http.Request) int
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.seen = append(rec.seen, seenRequest{
		Authorization: r.Header.Get(httpinfra.HeaderAuthorization),
		Identity:      r.Header.Get(httpinfra.HeaderClientIdentity),
		RequestID:     r.Header.Get(httpinfra.HeaderRequestID),
		Body:          string(body),
	})
	rec.mu.Unlock()

	status := http.StatusOK
	if rec.respond != nil {
		status = rec.respond(r)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (rec *recorder) Seen() []seenRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]seenRequest(nil), rec.seen...)
}

type harness struct {
	client    *http.Client
	server    *httptest.Server
	backend   *recorder
	refresher *MockRefresher
	repo      *authinfra.SlotTokenRepository
	metrics   *metrics.Auth
}

func newHarness(t *testing.T, seed *domain.Credentials, respond func(r *http.Request) int) *harness {
	t.Helper()
	backend := &recorder{respond: respond}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	repo := authinfra.NewSlotTokenRepository(storage.NewMemoryStore())
	if seed != nil {
		require.NoError(t, repo.Write(context.Background(), *seed))
	}
	refresher := &MockRefresher{}
	m := metrics.NewAuth(prometheus.NewRegistry())
	transport := httpinfra.NewAuthTransport(server.Client().Transport, repo, refresher, nil, httpinfra.AuthTransportConfig{
		ClientIdentity: "driver-app",
		Metrics:        m,
	})
	return &harness{
		client:    &http.Client{Transport: transport, Timeout: 2 * time.Second},
		server:    server,
		backend:   backend,
		refresher: refresher,
		repo:      repo,
		metrics:   m,
	}
}

func (h *harness) get(t *testing.T) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/appointments", nil)
	require.NoError(t, err)
	return h.client.Do(req)
}

func TestAuthTransport_NoSessionSendsWithoutBearer(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp, err := h.get(t)
	require.NoError(t, err)
	resp.Body.Close()

	seen := h.backend.Seen()
	require.Len(t, seen, 1)
	assert.Empty(t, seen[0].Authorization)
	assert.Equal(t, "driver-app", seen[0].Identity)
	assert.NotEmpty(t, seen[0].RequestID)
	h.refresher.AssertNotCalled(t, "RequestRefresh", mock.Anything, mock.Anything)
}

func TestAuthTransport_UnauthorizedWithoutSessionPassesThrough(t *testing.T) {
	h := newHarness(t, nil, func(*http.Request) int { return http.StatusUnauthorized })

	resp, err := h.get(t)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Len(t, h.backend.Seen(), 1)
	h.refresher.AssertNotCalled(t, "RequestRefresh", mock.Anything, mock.Anything)
}

func TestAuthTransport_UsableTokenIsAttached(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().Build()
	h := newHarness(t, &creds, nil)

	resp, err := h.get(t)
	require.NoError(t, err)
	resp.Body.Close()

	seen := h.backend.Seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "Bearer "+creds.AccessToken, seen[0].Authorization)
	h.refresher.AssertNotCalled(t, "RequestRefresh", mock.Anything, mock.Anything)
}

func TestAuthTransport_RefreshesBeforeSend(t *testing.T) {
	tests := []struct {
		name   string
		access string
	}{
		{"inside pre-refresh window", testfixtures.NewTokenBuilder().ExpiringIn(3 * time.Minute).Build()},
		{"expired", testfixtures.ExpiredToken()},
		{"malformed", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := testfixtures.NewCredentialsBuilder().Build()
			creds.AccessToken = tt.access
			h := newHarness(t, &creds, nil)
			fresh := testfixtures.ValidToken()
			h.refresher.On("RequestRefresh", mock.Anything, tt.access).Return(fresh, nil).Once()

			resp, err := h.get(t)
			require.NoError(t, err)
			resp.Body.Close()

			seen := h.backend.Seen()
			require.Len(t, seen, 1)
			assert.Equal(t, "Bearer "+fresh, seen[0].Authorization)
			h.refresher.AssertExpectations(t)
		})
	}
}

func TestAuthTransport_RefreshFailureStopsTheCall(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().AccessExpiringIn(-time.Second).Build()
	h := newHarness(t, &creds, nil)
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).
		Return("", domain.NewAuthError(domain.KindRefreshFailed, "", nil)).Once()

	_, err := h.get(t)

	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.Empty(t, h.backend.Seen())
}

func TestAuthTransport_ProactiveRefreshOutageSendsCurrentToken(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().AccessExpiringIn(3 * time.Minute).Build()
	h := newHarness(t, &creds, nil)
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).
		Return("", domain.NewAuthError(domain.KindRefreshTransport, "refresh timed out", context.DeadlineExceeded)).Once()

	resp, err := h.get(t)
	require.NoError(t, err)
	resp.Body.Close()

	seen := h.backend.Seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "Bearer "+creds.AccessToken, seen[0].Authorization)
	h.refresher.AssertExpectations(t)
}

func TestAuthTransport_ProactiveRefreshRejectionStopsTheCall(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().AccessExpiringIn(3 * time.Minute).Build()
	h := newHarness(t, &creds, nil)
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).
		Return("", domain.NewAuthError(domain.KindRefreshFailed, "", nil)).Once()

	_, err := h.get(t)

	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.Empty(t, h.backend.Seen())
}

func TestAuthTransport_ExpiredTokenOutageFailsTheCall(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().AccessExpiringIn(-time.Second).Build()
	h := newHarness(t, &creds, nil)
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).
		Return("", domain.NewAuthError(domain.KindRefreshTransport, "", nil)).Once()

	_, err := h.get(t)

	require.ErrorIs(t, err, domain.ErrRefreshTransport)
	assert.Empty(t, h.backend.Seen())
}

func TestAuthTransport_RetriesOnceAfterUnauthorized(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().Build()
	fresh := testfixtures.ValidToken()
	h := newHarness(t, &creds, func(r *http.Request) int {
		if r.Header.Get(httpinfra.HeaderAuthorization) == "Bearer "+fresh {
			return http.StatusCreated
		}
		return http.StatusUnauthorized
	})
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).Return(fresh, nil).Once()

	// A body without GetBody has to be buffered to be sent twice.
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/appointments", io.NopCloser(strings.NewReader(`{"service":"oil change"}`)))
	require.NoError(t, err)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	seen := h.backend.Seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "Bearer "+creds.AccessToken, seen[0].Authorization)
	assert.Equal(t, "Bearer "+fresh, seen[1].Authorization)
	assert.Equal(t, `{"service":"oil change"}`, seen[0].Body)
	assert.Equal(t, seen[0].Body, seen[1].Body)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RetryTotal.WithLabelValues(httpinfra.RetryResultRetried)))
	h.refresher.AssertExpectations(t)
}

func TestAuthTransport_SecondUnauthorizedIsExhausted(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().Build()
	fresh := testfixtures.ValidToken()
	h := newHarness(t, &creds, func(*http.Request) int { return http.StatusUnauthorized })
	h.refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).Return(fresh, nil).Once()

	_, err := h.get(t)

	require.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.Equal(t, domain.KindRetryExhausted, domain.KindOf(err))
	assert.Len(t, h.backend.Seen(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RetryTotal.WithLabelValues(httpinfra.RetryResultExhausted)))
	h.refresher.AssertNumberOfCalls(t, "RequestRefresh", 1)
}

func TestAuthTransport_RetriedRequestCarriesMarker(t *testing.T) {
	creds := testfixtures.NewCredentialsBuilder().Build()
	fresh := testfixtures.ValidToken()
	var retriedSeen []bool
	var mu sync.Mutex

	inner := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		retriedSeen = append(retriedSeen, httpinfra.IsRetried(r.Context()))
		mu.Unlock()
		status := http.StatusUnauthorized
		if r.Header.Get(httpinfra.HeaderAuthorization) == "Bearer "+fresh {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: http.NoBody, Request: r}, nil
	})
	repo := authinfra.NewSlotTokenRepository(storage.NewMemoryStore())
	require.NoError(t, repo.Write(context.Background(), creds))
	refresher := &MockRefresher{}
	refresher.On("RequestRefresh", mock.Anything, creds.AccessToken).Return(fresh, nil).Once()
	transport := httpinfra.NewAuthTransport(inner, repo, refresher, nil, httpinfra.AuthTransportConfig{})

	req, err := http.NewRequest(http.MethodGet, "http://backend.invalid/profile", nil)
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, retriedSeen)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
