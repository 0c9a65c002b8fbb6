package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/infrastructure/storage"
	"garagelink.app/client/internal/interfaces/di"
	"garagelink.app/client/internal/mockbackend"
)

type cliHarness struct {
	t       *testing.T
	backend *mockbackend.Server
	store   *storage.MemoryStore
	url     string
	config  string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	backend := mockbackend.New(mockbackend.Options{AccessTTL: time.Hour})
	backend.AddUser(domain.User{ID: "u-1", Name: "Dana", Email: "dana@example.com", Role: domain.RoleDriver}, "hunter2")
	backend.AddUser(domain.User{ID: "m-7", Name: "Sam", Email: "sam@example.com", Role: domain.RoleMechanic}, "wrench")
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	return &cliHarness{
		t:       t,
		backend: backend,
		store:   storage.NewMemoryStore(),
		url:     srv.URL,
		config:  filepath.Join(t.TempDir(), "absent.yaml"),
	}
}

func (h *cliHarness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(Options{
		ContainerOptions: []di.Option{di.WithStore(h.store), di.WithLogger(zap.NewNop())},
		Out:              &out,
		ErrOut:           &errOut,
		In:               strings.NewReader(stdin),
	})
	cmd.SetArgs(append([]string{"--config", h.config, "--api-url", h.url}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestLoginStatusLogout(t *testing.T) {
	h := newCLIHarness(t)

	out, _, err := h.run("hunter2\n", "login", "--email", "dana@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Dana")

	out, _, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in")
	assert.Contains(t, out, "Dana")
	assert.Contains(t, out, "fresh")

	out, _, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	assert.Equal(t, 0, h.store.Len())

	out, _, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")
}

func TestLogin_WrongAppIsRejected(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "--identity", "driver-app", "login", "--email", "sam@example.com", "--password", "wrench")

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "WRONG_APP", apiErr.Code)
	assert.Equal(t, 0, h.store.Len())
}

func TestProfileAndAppointments(t *testing.T) {
	h := newCLIHarness(t)
	_, _, err := h.run("", "login", "--email", "dana@example.com", "--password", "hunter2")
	require.NoError(t, err)

	out, _, err := h.run("", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Dana <dana@example.com>")

	out, _, err = h.run("", "appointments")
	require.NoError(t, err)
	assert.Contains(t, out, "No appointments")

	out, _, err = h.run("", "appointments", "book", "--mechanic", "m-7", "--service", "oil change", "--at", "2026-11-02T09:30:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Booked")

	out, _, err = h.run("", "appointments", "--status", "requested")
	require.NoError(t, err)
	assert.Contains(t, out, "oil change")

	out, _, err = h.run("", "wallet")
	require.NoError(t, err)
	assert.Contains(t, out, "250.00 EUR")
}

func TestRefreshCommand_RotatesTokens(t *testing.T) {
	h := newCLIHarness(t)
	_, _, err := h.run("", "login", "--email", "dana@example.com", "--password", "hunter2")
	require.NoError(t, err)
	before, _, err := h.store.Get(context.Background(), domain.SlotRefreshToken)
	require.NoError(t, err)

	out, _, err := h.run("", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Session refreshed")

	after, _, err := h.store.Get(context.Background(), domain.SlotRefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Equal(t, int64(1), h.backend.RefreshCalls())
}

func TestRevokedSessionPrintsNotice(t *testing.T) {
	h := newCLIHarness(t)
	creds := h.backend.SeedSession("u-1", -time.Second)
	require.NoError(t, h.store.SetMany(context.Background(), map[string]string{
		domain.SlotAccessToken:  creds.AccessToken,
		domain.SlotRefreshToken: creds.RefreshToken,
		domain.SlotUserID:       creds.UserID,
	}))
	h.backend.FailRefresh(401)

	_, errOut, err := h.run("", "profile")

	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.Contains(t, errOut, "Session expired")
	assert.Contains(t, describeError(err), "garagelink login")
	assert.Equal(t, 0, h.store.Len())
}

func TestRefreshCommand_RequiresSession(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run("", "refresh")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}
