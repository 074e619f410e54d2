package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    [][]byte
	err     error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subject = subject
	f.data = append(f.data, data)
	return nil
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Notify(Notification{Kind: KindSyncFailed, Message: Message(KindSyncFailed)})
	w.Notify(Notification{Kind: KindValidationFailed, Message: "bad name", Field: "displayName"})

	assert.Equal(t,
		"[sync_failed] Sync failed; changes kept on this device\n[validation_failed] bad name (displayName)\n",
		buf.String())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Notification{Kind: KindSynced})
	r.Notify(Notification{Kind: KindSavedLocal})
	assert.Equal(t, []Kind{KindSynced, KindSavedLocal}, r.Kinds())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, KindSavedLocal, last.Kind)

	all := r.All()
	all[0].Kind = KindLoggedOut
	assert.Equal(t, KindSynced, r.All()[0].Kind, "All returns a copy")

	r.Reset()
	assert.Empty(t, r.All())
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, nil, &b}
	m.Notify(Notification{Kind: KindLoggedOut})
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p, err := NewNATSPublisher(conn, DefaultSubject)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.Notify(Notification{Kind: KindSyncFailed, Message: "boom", Err: errors.New("status 500"), At: at})

	require.Len(t, conn.data, 1)
	assert.Equal(t, DefaultSubject, conn.subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.data[0], &got))
	assert.Equal(t, "sync_failed", got["kind"])
	assert.Equal(t, "boom", got["message"])
	assert.Equal(t, "status 500", got["error"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["at"])
	assert.NotContains(t, got, "field")
}

func TestNATSPublisher_FailureIsDropped(t *testing.T) {
	p, err := NewNATSPublisher(&fakeConn{err: errors.New("no responders")}, "x")
	require.NoError(t, err)
	assert.NotPanics(t, func() { p.Notify(Notification{Kind: KindSynced}) })
}

func TestNATSPublisher_RequiresSubject(t *testing.T) {
	_, err := NewNATSPublisher(&fakeConn{}, "")
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	for _, k := range []Kind{KindSynced, KindSavedLocal, KindSyncFailed, KindLoadFailed, KindValidationFailed, KindLoggedOut} {
		assert.NotEqual(t, string(k), Message(k), k)
	}
	assert.Equal(t, "other", Message("other"))
}
