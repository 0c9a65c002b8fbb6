// Package mockbackend is an in-memory stand-in for the marketplace backend.
// Tests and local runs point the client at it.
package mockbackend

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"garagelink.app/client/internal/core/domain"
)

// Options configures a Server.
type Options struct {
	Secret    string
	AccessTTL time.Duration
	Logger    *zap.Logger
}

type account struct {
	user     domain.User
	password string
}

// Server holds all backend state behind one mutex.
type Server struct {
	secret    []byte
	accessTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
	router    chi.Router

	mu            sync.Mutex
	accounts      map[string]*account // by email
	refreshTokens map[string]string   // token -> user id
	appointments  map[string][]domain.Appointment
	messages      map[string][]domain.Message // by thread
	ratings       []domain.Rating
	refreshDelay  time.Duration
	refreshStatus int

	refreshCalls  atomic.Int64
	businessCalls atomic.Int64
}

// New creates a server with no accounts.
func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "mock-backend-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		secret:        []byte(opts.Secret),
		accessTTL:     opts.AccessTTL,
		logger:        opts.Logger,
		now:           time.Now,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		appointments:  make(map[string][]domain.Appointment),
		messages:      make(map[string][]domain.Message),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireJWT)
		r.Get("/profile", s.handleProfile)
		r.Get("/appointments", s.handleListAppointments)
		r.Post("/appointments", s.handleCreateAppointment)
		r.Post("/appointments/{id}/cancel", s.handleCancelAppointment)
		r.Get("/parts", s.handleParts)
		r.Get("/messages", s.handleListMessages)
		r.Post("/messages", s.handleSendMessage)
		r.Post("/ratings", s.handleRate)
		r.Get("/wallet", s.handleWallet)
	})
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddUser registers an account that can log in with password.
func (s *Server) AddUser(user domain.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Email] = &account{user: user, password: password}
}

// IssueAccessToken signs an access token for userID expiring after ttl.
// A negative ttl yields an already expired token.
func (s *Server) IssueAccessToken(userID string, ttl time.Duration) string {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// IssueRefreshToken registers and returns a single-use refresh token.
func (s *Server) IssueRefreshToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueRefreshLocked(userID)
}

func (s *Server) issueRefreshLocked(userID string) string {
	token := "rt_" + uuid.NewString()
	s.refreshTokens[token] = userID
	return token
}

// SeedSession returns a pair for userID whose access token expires after ttl.
func (s *Server) SeedSession(userID string, ttl time.Duration) domain.Credentials {
	return domain.Credentials{
		AccessToken:  s.IssueAccessToken(userID, ttl),
		RefreshToken: s.IssueRefreshToken(userID),
		UserID:       userID,
	}
}

// RefreshTokenActive reports whether token would still be accepted.
func (s *Server) RefreshTokenActive(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refreshTokens[token]
	return ok
}

// SetRefreshDelay stalls every refresh response by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// FailRefresh makes every refresh answer with status. 0 restores normal
// behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// RefreshCalls counts refresh requests received.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// BusinessCalls counts authenticated business requests that reached a handler.
func (s *Server) BusinessCalls() int64 {
	return s.businessCalls.Load()
}

// Ratings returns a copy of the stored ratings.
func (s *Server) Ratings() []domain.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Rating(nil), s.ratings...)
}
