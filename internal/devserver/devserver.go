// Package devserver is an in-memory upstream implementing the auth and
// profile contract the client and proxy speak. It backs local runs and the
// end-to-end tests; nothing survives a restart.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/hexagram/internal/gateway"
)

const (
	defaultTokenTTL = 24 * time.Hour
	defaultRole     = "user"
	defaultPlan     = "free"
)

type user struct {
	ID           string
	Email        string
	PasswordHash []byte
}

// Server holds users and their profiles.
//
// Thread-safety: all handlers are safe for concurrent use via internal mutex.
type Server struct {
	mu       sync.RWMutex
	users    map[string]user           // by lower-cased email
	profiles map[string]map[string]any // by user ID

	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	cost     int
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL sets how long issued tokens stay valid. Default: 24h.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = d
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.cost = cost
	}
}

// New creates a Server signing tokens with secret.
func New(secret string, opts ...Option) (*Server, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	s := &Server{
		users:    make(map[string]user),
		profiles: make(map[string]map[string]any),
		secret:   []byte(secret),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router returns the upstream routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Post(gateway.RegisterPath, s.Register)
	r.Post(gateway.LoginPath, s.Login)
	r.With(s.RequireAuth).Get(gateway.ProfilePath, s.GetProfile)
	r.With(s.RequireAuth).Put(gateway.ProfilePath, s.PutProfile)
	return r
}

// HTTPServer wraps Router in an http.Server listening on port.
func (s *Server) HTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Profile returns a copy of a user's stored profile, for inspection.
func (s *Server) Profile(userID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.profiles[userID]))
	for k, v := range s.profiles[userID] {
		out[k] = v
	}
	return out
}

// SeedProfile replaces a user's stored profile.
func (s *Server) SeedProfile(email string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return fmt.Errorf("seed profile: unknown user %q", email)
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.profiles[u.ID] = cp
	return nil
}

// Register creates an account.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req gateway.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := strings.ToLower(strings.TrimSpace(req.Email))

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[key]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	u := user{ID: uuid.NewString(), Email: strings.TrimSpace(req.Email), PasswordHash: hashed}
	s.users[key] = u
	s.mu.Unlock()

	slog.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"userId": u.ID, "email": u.Email})
}

// Login verifies credentials and issues a bearer token.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req gateway.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	s.mu.RLock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(req.Email))]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := issueToken(u, s.secret, s.now(), s.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, gateway.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Email:       u.Email,
		UserID:      u.ID,
		Roles:       []string{defaultRole},
		Plan:        defaultPlan,
	})
}

// GetProfile returns the caller's stored profile, or an empty object.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Profile(userIDFromContext(r.Context())))
}

// PutProfile overwrites the fields present in the body.
func (s *Server) PutProfile(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "invalid profile")
		return
	}
	id := userIDFromContext(r.Context())

	s.mu.Lock()
	stored := s.profiles[id]
	if stored == nil {
		stored = make(map[string]any, len(body))
		s.profiles[id] = stored
	}
	for k, v := range body {
		stored[k] = v
	}
	s.mu.Unlock()

	slog.Debug("profile stored",
		"user_id", id,
		"fields", len(body),
		"request_id", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

type contextKey string

const contextUserIDKey contextKey = "userID"

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextUserIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
