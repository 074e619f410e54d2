package profile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hexagram/internal/storage"
)

// brokenWrites accepts reads but fails every write once armed.
type brokenWrites struct {
	*storage.Memory
	fail bool
}

func (b *brokenWrites) SetItem(ctx context.Context, key, value string) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Memory.SetItem(ctx, key, value)
}

func readEnvelope(t *testing.T, st storage.Storage) envelope {
	t.Helper()
	raw, found, err := st.GetItem(context.Background(), StorageKey)
	require.NoError(t, err)
	require.True(t, found)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func TestOpen_FirstRunPersistsDefaults(t *testing.T) {
	st := storage.NewMemory()
	s, err := Open(context.Background(), st, WithSuffixGenerator(NewFixedSuffix("ab12")))
	require.NoError(t, err)

	p := s.Read()
	assert.Equal(t, "Hexagram 用户ab12", p.DisplayName)
	assert.Equal(t, DefaultLanguage, p.PreferredLanguage)
	assert.Equal(t, DefaultRegion, p.Region)
	assert.Equal(t, DefaultLevel, p.PaidLevel)
	assert.Equal(t, DefaultLevel, p.ServiceLevel)
	assert.Equal(t, DefaultGenderPref, p.GenderPreference)
	assert.Nil(t, p.LastSyncedAt)

	assert.Equal(t, CurrentVersion, readEnvelope(t, st).Version)
}

func TestOpen_ReloadsPersistedProfile(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "hexagram.db")

	db, err := storage.OpenSQLite(dbPath)
	require.NoError(t, err)
	s, err := Open(ctx, db)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(p *UserProfile) {
		p.DisplayName = "Alice"
		p.Region = "JP"
	}))
	require.NoError(t, db.Close())

	db, err = storage.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	s, err = Open(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "Alice", s.Read().DisplayName)
	assert.Equal(t, "JP", s.Read().Region)
}

func TestOpen_MigratesV1(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	legacy := `{"version":1,"state":{"displayName":"Bob","preferredLanguage":"中文","region":"中国","paidLevel":"pro","serviceLevel":"","lastSyncedAt":1700000000000}}`
	require.NoError(t, st.SetItem(ctx, StorageKey, legacy))

	s, err := Open(ctx, st)
	require.NoError(t, err)

	p := s.Read()
	assert.Equal(t, "Bob", p.DisplayName)
	assert.Equal(t, "cn", p.PreferredLanguage)
	assert.Equal(t, "CN", p.Region)
	assert.Equal(t, "pro", p.PaidLevel)
	assert.Equal(t, DefaultLevel, p.ServiceLevel)
	assert.Equal(t, DefaultGenderPref, p.GenderPreference)
	require.NotNil(t, p.LastSyncedAt)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *p.LastSyncedAt)

	assert.Equal(t, CurrentVersion, readEnvelope(t, st).Version, "migrated envelope is rewritten")
}

func TestOpen_UnreadableResetsToDefaults(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.SetItem(ctx, StorageKey, `{broken`))

	s, err := Open(ctx, st, WithSuffixGenerator(NewFixedSuffix("0001")))
	require.NoError(t, err)
	assert.Equal(t, "Hexagram 用户0001", s.Read().DisplayName)
	assert.Equal(t, CurrentVersion, readEnvelope(t, st).Version)
}

func TestOpen_NewerVersionBestEffort(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.SetItem(ctx, StorageKey, `{"version":9,"state":{"displayName":"Future","region":"FR","mood":"happy"}}`))

	s, err := Open(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "Future", s.Read().DisplayName)
	assert.Equal(t, "FR", s.Read().Region)
}

func TestUpdate_Atomic(t *testing.T) {
	ctx := context.Background()
	st := &brokenWrites{Memory: storage.NewMemory()}
	s, err := Open(ctx, st)
	require.NoError(t, err)
	before := s.Read()

	st.fail = true
	err = s.Update(ctx, func(p *UserProfile) {
		p.DisplayName = "Lost"
	})
	require.Error(t, err)
	assert.Equal(t, before, s.Read(), "failed persistence leaves the snapshot unchanged")

	st.fail = false
	require.NoError(t, s.Update(ctx, func(p *UserProfile) { p.DisplayName = "Kept" }))
	assert.Equal(t, "Kept", s.Read().DisplayName)
}

func TestRead_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, storage.NewMemory())
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Update(ctx, func(p *UserProfile) { p.LastSyncedAt = &ts }))

	snap := s.Read()
	*snap.LastSyncedAt = time.Time{}
	snap.DisplayName = "mutated"

	assert.Equal(t, ts, *s.Read().LastSyncedAt)
	assert.NotEqual(t, "mutated", s.Read().DisplayName)
}

func TestReset_NewSuffix(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, storage.NewMemory(), WithSuffixGenerator(NewFixedSuffix("aaaa", "bbbb")))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(p *UserProfile) {
		p.DisplayName = "Alice"
		p.PaidLevel = "premium"
	}))

	require.NoError(t, s.Reset(ctx))
	p := s.Read()
	assert.Equal(t, "Hexagram 用户bbbb", p.DisplayName)
	assert.Equal(t, DefaultLevel, p.PaidLevel)
}

func TestUUIDSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s := UUIDSuffix{}.Generate()
		assert.Len(t, s, 4)
		assert.Regexp(t, `^[0-9a-f]{4}$`, s)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestFixedSuffix_RepeatsLast(t *testing.T) {
	g := NewFixedSuffix("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "0000", NewFixedSuffix().Generate())
}
