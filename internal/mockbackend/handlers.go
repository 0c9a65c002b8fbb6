package mockbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"garagelink.app/client/internal/core/domain"
)

type userIDKey struct{}

var identityRoles = map[string]domain.Role{
	"driver-app":   domain.RoleDriver,
	"mechanic-app": domain.RoleMechanic,
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		ClientIdentity string `json:"clientIdentity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	if !ok || acct.password != req.Password {
		s.mu.Unlock()
		writeJSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is incorrect")
		return
	}
	if role, known := identityRoles[req.ClientIdentity]; known && role != acct.user.Role {
		s.mu.Unlock()
		writeJSONError(w, http.StatusForbidden, "WRONG_APP", "account cannot sign in to "+req.ClientIdentity)
		return
	}
	user := acct.user
	refresh := s.issueRefreshLocked(user.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.LoginResult{
		Token:        s.IssueAccessToken(user.ID, s.accessTTL),
		RefreshToken: refresh,
		User:         user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var req struct {
		RefreshToken   string `json:"refreshToken"`
		ClientIdentity string `json:"clientIdentity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "refreshToken is required")
		return
	}

	s.mu.Lock()
	delay, status := s.refreshDelay, s.refreshStatus
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeJSONError(w, status, "INJECTED", http.StatusText(status))
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		s.mu.Unlock()
		s.logger.Info("rejected refresh token", zap.String("identity", req.ClientIdentity))
		writeJSONError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid or already used")
		return
	}
	delete(s.refreshTokens, req.RefreshToken)
	next := s.issueRefreshLocked(userID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.RefreshedTokens{
		Token:        s.IssueAccessToken(userID, s.accessTTL),
		RefreshToken: next,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// requireJWT verifies the bearer token and stores its subject in the context.
func (s *Server) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
		if err != nil || !token.Valid || claims.Subject == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		s.businessCalls.Add(1)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, claims.Subject)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			writeJSON(w, http.StatusOK, acct.user)
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	status := domain.AppointmentStatus(r.URL.Query().Get("status"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Appointment{}
	for _, a := range s.appointments[userID(r)] {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var in domain.NewAppointment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.MechanicID == "" || in.Service == "" {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "mechanicId and service are required")
		return
	}

	appt := domain.Appointment{
		ID:          uuid.NewString(),
		DriverID:    userID(r),
		MechanicID:  in.MechanicID,
		Service:     in.Service,
		ScheduledAt: in.ScheduledAt,
		Status:      domain.AppointmentRequested,
		Notes:       in.Notes,
	}

	s.mu.Lock()
	s.appointments[appt.DriverID] = append(s.appointments[appt.DriverID], appt)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owner := userID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.appointments[owner] {
		if a.ID != id {
			continue
		}
		if a.Status == domain.AppointmentCompleted {
			writeJSONError(w, http.StatusConflict, "ALREADY_COMPLETED", "completed appointments cannot be cancelled")
			return
		}
		a.Status = domain.AppointmentCancelled
		s.appointments[owner][i] = a
		writeJSON(w, http.StatusOK, a)
		return
	}
	writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "appointment not found")
}

var catalogue = []domain.Part{
	{ID: "p-100", Name: "Brake pads (front)", PriceCents: 4599, InStock: true},
	{ID: "p-101", Name: "Oil filter", PriceCents: 899, InStock: true},
	{ID: "p-102", Name: "Timing belt", PriceCents: 12950, InStock: false},
}

func (s *Server) handleParts(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	out := []domain.Part{}
	for _, p := range catalogue {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	thread := r.URL.Query().Get("thread")

	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Message{}, s.messages[thread]...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ThreadID string `json:"threadId"`
		Body     string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ThreadID == "" || in.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "threadId and body are required")
		return
	}

	msg := domain.Message{
		ID:       uuid.NewString(),
		ThreadID: in.ThreadID,
		SenderID: userID(r),
		Body:     in.Body,
		SentAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.messages[in.ThreadID] = append(s.messages[in.ThreadID], msg)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var in domain.Rating
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Stars < 1 || in.Stars > 5 {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "stars must be between 1 and 5")
		return
	}

	s.mu.Lock()
	s.ratings = append(s.ratings, in)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Wallet{BalanceCents: 25000, Currency: "EUR"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
