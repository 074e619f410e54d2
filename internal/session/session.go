// Package session owns the authentication credential and the storage tier it
// lives in.
//
// Presence of an access token is the sole definition of "authenticated".
// A session is written and cleared as a whole; it is never partially
// updated.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/hexagram/internal/storage"
)

// Key is the fixed storage key for the serialized session.
const Key = "hexagram-auth-session"

// DefaultTokenType is the authorization scheme used when a session carries no token type.
const DefaultTokenType = "Bearer"

// AuthSession is the bearer credential returned by a successful login.
type AuthSession struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType,omitempty"`
	Email       string   `json:"email,omitempty"`
	UserID      string   `json:"userId,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Plan        string   `json:"plan,omitempty"`
}

// Valid reports whether the session carries an access token.
func (s AuthSession) Valid() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// AuthorizationHeader builds the value of the Authorization header.
func (s AuthSession) AuthorizationHeader() string {
	scheme := s.TokenType
	if scheme == "" {
		scheme = DefaultTokenType
	}
	return scheme + " " + s.AccessToken
}

// Store reads and writes the session across a durable and an ephemeral tier.
// Exactly one tier holds the session after Persist; which one is the
// "remember me" flag.
//
// Either tier may be nil. A Store with no tiers behaves as if storage is
// unavailable: Get always reports no session and writes are no-ops.
type Store struct {
	durable   storage.Storage
	ephemeral storage.Storage
}

// NewStore creates a session store over the given tiers.
func NewStore(durable, ephemeral storage.Storage) *Store {
	return &Store{durable: durable, ephemeral: ephemeral}
}

// Get returns the current session, checking the durable tier first.
// Unreadable, unparsable, or token-less values count as no session.
func (s *Store) Get(ctx context.Context) (AuthSession, bool) {
	if sess, ok := readTier(ctx, s.durable, "durable"); ok {
		return sess, true
	}
	return readTier(ctx, s.ephemeral, "ephemeral")
}

// Persist writes the session to the durable tier when remember is set and
// to the ephemeral tier otherwise, clearing the other tier.
func (s *Store) Persist(ctx context.Context, sess AuthSession, remember bool) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	target, other := s.ephemeral, s.durable
	if remember {
		target, other = s.durable, s.ephemeral
	}

	if target != nil {
		if err := target.SetItem(ctx, Key, string(raw)); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	if other != nil {
		if err := other.RemoveItem(ctx, Key); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	return nil
}

// Clear removes the session from both tiers. Idempotent. A failure in
// one tier does not stop the other from being cleared.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	for _, tier := range []storage.Storage{s.durable, s.ephemeral} {
		if tier == nil {
			continue
		}
		if err := tier.RemoveItem(ctx, Key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func readTier(ctx context.Context, tier storage.Storage, name string) (AuthSession, bool) {
	if tier == nil {
		return AuthSession{}, false
	}

	raw, found, err := tier.GetItem(ctx, Key)
	if err != nil {
		slog.Warn("failed to read auth session", "tier", name, "error", err)
		return AuthSession{}, false
	}
	if !found || raw == "" {
		return AuthSession{}, false
	}

	var sess AuthSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		slog.Warn("failed to parse auth session", "tier", name, "error", err)
		return AuthSession{}, false
	}
	if !sess.Valid() {
		return AuthSession{}, false
	}
	return sess, true
}
