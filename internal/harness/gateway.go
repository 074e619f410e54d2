package harness

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/gateway"
	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

// pushScript decides the result of one push.
type pushScript struct {
	status int
	hold   bool
}

// scriptedGateway is the remote side of a scenario. Fetch returns the
// remote profile; a successful push overlays its payload onto it. Calls
// fail, or hold, as the flow scripts them.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type scriptedGateway struct {
	mu     sync.Mutex
	clock  interface{ Now() time.Time }
	start  time.Time
	trace  *tracer
	remote profile.Remote

	pushes  []pushScript
	fetches []int

	held   chan int      // release channel of the held push, nil if none
	heldCh chan struct{} // closed while a push is held
}

var _ engine.Gateway = (*scriptedGateway)(nil)

func newScriptedGateway(clock interface{ Now() time.Time }, trace *tracer, remote map[string]string) *scriptedGateway {
	g := &scriptedGateway{
		clock:  clock,
		start:  clock.Now(),
		trace:  trace,
		remote: make(profile.Remote, len(remote)),
		heldCh: make(chan struct{}),
	}
	for k, v := range remote {
		g.remote[k] = v
	}
	return g
}

// FetchProfile records the call and returns the remote profile or the
// scripted failure.
func (g *scriptedGateway) FetchProfile(ctx context.Context, sess session.AuthSession) (profile.Remote, error) {
	g.mu.Lock()
	g.trace.add(TraceEvent{Type: EventFetch, At: g.offset()})
	status := 0
	if len(g.fetches) > 0 {
		status, g.fetches = g.fetches[0], g.fetches[1:]
	}
	out := make(profile.Remote, len(g.remote))
	for k, v := range g.remote {
		out[k] = v
	}
	g.mu.Unlock()

	if status != 0 {
		return nil, statusError(status)
	}
	return out, nil
}

// PushProfile records the call, then succeeds, fails or holds as scripted.
func (g *scriptedGateway) PushProfile(ctx context.Context, sess session.AuthSession, payload map[string]string) error {
	g.mu.Lock()
	g.trace.add(TraceEvent{Type: EventPush, At: g.offset(), Payload: copyFields(payload)})
	var script pushScript
	if len(g.pushes) > 0 {
		script, g.pushes = g.pushes[0], g.pushes[1:]
	}
	var release chan int
	if script.hold {
		release = make(chan int, 1)
		g.held = release
		close(g.heldCh)
	}
	g.mu.Unlock()

	status := script.status
	if release != nil {
		select {
		case status = <-release:
		case <-ctx.Done():
			g.unhold(release)
			return context.Cause(ctx)
		}
	}
	if status != 0 {
		return statusError(status)
	}

	g.mu.Lock()
	for k, v := range payload {
		g.remote[k] = v
	}
	g.mu.Unlock()
	return nil
}

func (g *scriptedGateway) scriptPush(s pushScript) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, s)
}

func (g *scriptedGateway) scriptFetch(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches = append(g.fetches, status)
}

// release completes the held push with status.
func (g *scriptedGateway) release(status int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		return errors.New("no push is held")
	}
	g.held <- status
	g.held = nil
	g.heldCh = make(chan struct{})
	return nil
}

// unhold clears a held push that ended by cancellation.
func (g *scriptedGateway) unhold(release chan int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == release {
		g.held = nil
		g.heldCh = make(chan struct{})
	}
}

func (g *scriptedGateway) holding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held != nil
}

// heldSignal returns a channel closed once a push is held.
func (g *scriptedGateway) heldSignal() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.heldCh
}

func (g *scriptedGateway) remoteState() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyFields(g.remote)
}

// offset is the clock offset from the scenario start. Callers hold g.mu.
func (g *scriptedGateway) offset() int64 {
	return g.clock.Now().Sub(g.start).Milliseconds()
}

func statusError(status int) error {
	return &gateway.StatusError{StatusCode: status, Message: http.StatusText(status)}
}

// traceNotifier records notifications into the trace.
func traceNotifier(trace *tracer, start time.Time) notify.Notifier {
	return notify.Func(func(n notify.Notification) {
		ev := TraceEvent{
			Type:  EventNotify,
			At:    n.At.Sub(start).Milliseconds(),
			Kind:  string(n.Kind),
			Field: n.Field,
		}
		var serr *engine.SyncError
		if errors.As(n.Err, &serr) {
			ev.Code = string(serr.Code)
		}
		trace.add(ev)
	})
}

func copyFields[M ~map[string]string](in M) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
