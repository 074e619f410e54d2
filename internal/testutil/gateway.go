package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/hexagram/internal/gateway"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

// Push is one recorded PushProfile call.
type Push struct {
	Payload       map[string]string
	Authorization string
	RequestID     string
	At            time.Time
}

// FakeGateway is a scriptable profile gateway.
//
// FetchFunc and PushFunc, when set, decide each call's result; they may
// block on ctx to simulate a slow network. Without them Fetch returns
// Remote and Push succeeds.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeGateway struct {
	mu        sync.Mutex
	Remote    profile.Remote
	FetchFunc func(ctx context.Context) (profile.Remote, error)
	PushFunc  func(ctx context.Context, payload map[string]string) error
	Clock     interface{ Now() time.Time }

	fetches int
	pushes  []Push
}

// FetchProfile records the call and returns the scripted result.
func (g *FakeGateway) FetchProfile(ctx context.Context, sess session.AuthSession) (profile.Remote, error) {
	g.mu.Lock()
	g.fetches++
	fn, remote := g.FetchFunc, g.Remote
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	out := make(profile.Remote, len(remote))
	for k, v := range remote {
		out[k] = v
	}
	return out, nil
}

// PushProfile records the call and returns the scripted result.
func (g *FakeGateway) PushProfile(ctx context.Context, sess session.AuthSession, payload map[string]string) error {
	g.mu.Lock()
	p := Push{
		Payload:       payload,
		Authorization: sess.AuthorizationHeader(),
		RequestID:     gateway.RequestID(ctx),
	}
	if g.Clock != nil {
		p.At = g.Clock.Now()
	}
	g.pushes = append(g.pushes, p)
	fn := g.PushFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload)
	}
	return nil
}

// Fetches returns how many times FetchProfile was called.
func (g *FakeGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

// Pushes returns a copy of every recorded push.
func (g *FakeGateway) Pushes() []Push {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Push, len(g.pushes))
	copy(out, g.pushes)
	return out
}

// SetPushFunc replaces PushFunc safely while the engine is running.
func (g *FakeGateway) SetPushFunc(fn func(ctx context.Context, payload map[string]string) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PushFunc = fn
}

// SetFetchFunc replaces FetchFunc safely while the engine is running.
func (g *FakeGateway) SetFetchFunc(fn func(ctx context.Context) (profile.Remote, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FetchFunc = fn
}
