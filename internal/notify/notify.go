// Package notify carries user-facing outcomes of profile operations.
//
// Notifications are how users learn about failures; logs are diagnostics
// only. A sink must never block the caller for long.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindSynced           Kind = "synced"
	KindSavedLocal       Kind = "saved_local"
	KindSyncFailed       Kind = "sync_failed"
	KindLoadFailed       Kind = "load_failed"
	KindValidationFailed Kind = "validation_failed"
	KindLoggedOut        Kind = "logged_out"
)

// Notification is one user-facing message.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

// MarshalJSON renders Err as a string.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(n)}
	if n.Err != nil {
		out.Error = n.Err.Error()
	}
	return json.Marshal(out)
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Writer prints one human-readable line per notification.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a Writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	line := fmt.Sprintf("[%s] %s", n.Kind, n.Message)
	if n.Field != "" {
		line += fmt.Sprintf(" (%s)", n.Field)
	}
	fmt.Fprintln(w.out, line)
}

// Recorder keeps every notification in memory.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.seen))
	for i, n := range r.seen {
		kinds[i] = n.Kind
	}
	return kinds
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return Notification{}, false
	}
	return r.seen[len(r.seen)-1], true
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}

// Multi fans a notification out to every sink in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Message returns the default user-facing text for a kind.
func Message(kind Kind) string {
	switch kind {
	case KindSynced:
		return "Profile synced"
	case KindSavedLocal:
		return "Saved locally; sign in to sync"
	case KindSyncFailed:
		return "Sync failed; changes kept on this device"
	case KindLoadFailed:
		return "Load failed, using cached profile"
	case KindValidationFailed:
		return "Please fix the highlighted field"
	case KindLoggedOut:
		return "Signed out"
	default:
		return string(kind)
	}
}

var errEmptySubject = errors.New("notify: empty subject")

func logDropped(n Notification, err error) {
	slog.Warn("notification not published",
		"kind", n.Kind,
		"error", err,
	)
}
