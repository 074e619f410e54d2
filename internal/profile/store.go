package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/hexagram/internal/storage"
)

// StorageKey is the fixed key the profile envelope is persisted under.
const StorageKey = "hexagram-profile"

// CurrentVersion is the envelope version written by this client.
//
// Version history:
// 1 - lastSyncedAt as epoch milliseconds, language/region stored as labels
// 2 - genderPreference added, RFC 3339 lastSyncedAt, codes only
const CurrentVersion = 2

// envelope is the persisted form: the state plus the schema version it was written with.
type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// Store is the process-wide profile record.
//
// Every Update and Reset is persisted before it becomes visible; readers
// never observe a partially-updated snapshot. A failed write leaves the
// previous snapshot in place.
//
// Thread-safety: all methods are safe for concurrent use. Updater functions
// run under the store lock and must not call back into the Store.
type Store struct {
	mu       sync.RWMutex
	storage  storage.Storage
	current  UserProfile
	suffixes SuffixGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithSuffixGenerator sets the generator used for fresh display names.
//
// Default: UUIDSuffix.
func WithSuffixGenerator(g SuffixGenerator) Option {
	return func(s *Store) {
		s.suffixes = g
	}
}

// Open loads the profile from st, migrating older envelopes, or creates and
// persists defaults when nothing is stored yet.
func Open(ctx context.Context, st storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{storage: st, suffixes: UUIDSuffix{}}
	for _, opt := range opts {
		opt(s)
	}

	raw, found, err := st.GetItem(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	if !found {
		s.current = s.defaults()
		if err := s.persist(ctx, s.current); err != nil {
			return nil, fmt.Errorf("open profile store: %w", err)
		}
		return s, nil
	}

	p, version, err := decode(raw)
	if err != nil {
		slog.Warn("discarding unreadable profile", "key", StorageKey, "error", err)
		p, version = s.defaults(), 0
	}
	s.current = p

	if version < CurrentVersion {
		if err := s.persist(ctx, s.current); err != nil {
			return nil, fmt.Errorf("open profile store: %w", err)
		}
		slog.Info("profile migrated", "from", version, "to", CurrentVersion)
	}
	return s, nil
}

// Read returns the current snapshot by value.
func (s *Store) Read() UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Update applies fn to a copy of the snapshot, persists the result and
// then replaces the snapshot.
func (s *Store) Update(ctx context.Context, fn func(draft *UserProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone()
	fn(&next)
	if err := s.persist(ctx, next); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	s.current = next
	return nil
}

// Reset replaces the snapshot with fresh defaults, including a new
// display-name suffix.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults()
	if err := s.persist(ctx, next); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	s.current = next
	return nil
}

// Defaults returns the profile a first run starts from, with the given suffix.
func Defaults(suffix string) UserProfile {
	return UserProfile{
		DisplayName:       DefaultDisplayName + suffix,
		PreferredLanguage: DefaultLanguage,
		GenderPreference:  DefaultGenderPref,
		Region:            DefaultRegion,
		PaidLevel:         DefaultLevel,
		ServiceLevel:      DefaultLevel,
	}
}

func (s *Store) defaults() UserProfile {
	return Defaults(s.suffixes.Generate())
}

func (s *Store) persist(ctx context.Context, p UserProfile) error {
	state, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	raw, err := json.Marshal(envelope{State: state, Version: CurrentVersion})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return s.storage.SetItem(ctx, StorageKey, string(raw))
}
