package harness

import "sync"

// Trace event types.
const (
	EventFetch  = "fetch"
	EventPush   = "push"
	EventNotify = "notify"
)

// TraceEvent is one gateway call or notification.
type TraceEvent struct {
	Type    string            `json:"type"` // "fetch", "push" or "notify"
	At      int64             `json:"at_ms"`
	Payload map[string]string `json:"payload,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Field   string            `json:"field,omitempty"`
	Code    string            `json:"code,omitempty"`
}

// Key returns the event key used by assertions: fetch, push or
// notify:<kind>.
func (e TraceEvent) Key() string {
	if e.Type == EventNotify {
		return EventNotify + ":" + e.Kind
	}
	return e.Type
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains all gateway calls and notifications in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State contains the final state targets for state assertions.
	State map[string]map[string]string `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// tracer collects events from the gateway goroutines and the engine loop.
type tracer struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (t *tracer) add(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *tracer) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
