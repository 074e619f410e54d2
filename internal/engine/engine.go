package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

// DefaultAutoSyncDelay is the debounce window for auto-sync.
const DefaultAutoSyncDelay = 1000 * time.Millisecond

// Profiles is the profile record the engine reads and commits to.
// Implemented by *profile.Store.
type Profiles interface {
	Read() profile.UserProfile
	Update(ctx context.Context, fn func(draft *profile.UserProfile)) error
}

// Sessions gates remote calls. Implemented by *session.Store.
type Sessions interface {
	Get(ctx context.Context) (session.AuthSession, bool)
	Clear(ctx context.Context) error
}

// Gateway is the remote profile authority. Implemented by *gateway.Client.
type Gateway interface {
	FetchProfile(ctx context.Context, sess session.AuthSession) (profile.Remote, error)
	PushProfile(ctx context.Context, sess session.AuthSession, payload map[string]string) error
}

// State is the engine's position in the sync lifecycle.
type State string

const (
	StateIdle             State = "Idle"
	StateLoading          State = "Loading"
	StateSaving           State = "Saving"
	StateAutoSyncPending  State = "AutoSyncPending"
	StateAutoSyncInFlight State = "AutoSyncInFlight"
)

// Outcome is the completion signal of one operation.
//
// Kind is the notification the operation emitted, empty when it finished
// silently. Err carries a *SyncError on failure or the cancellation cause
// when Canceled is set. NoSession marks a remote step skipped because no
// one is logged in.
type Outcome struct {
	Kind      notify.Kind
	Err       error
	Canceled  bool
	NoSession bool
	Profile   profile.UserProfile
}

// Engine is the single-writer profile sync event loop.
//
// Every public operation enqueues an event and returns immediately. The
// Run goroutine is the only one that reads or writes engine state, calls
// the profile store, or emits notifications. Network calls run in their own
// goroutines and report back through completion events, so the loop
// never blocks on I/O.
//
// Thread-safety model:
//   - Load, Save, Edit, SetAutoSync, Upgrade, Logout, State, Flush, Settle:
//     safe from any goroutine
//   - Run: must be called from exactly one goroutine, once
type Engine struct {
	profiles Profiles
	sessions Sessions
	gateway  Gateway
	variant  *profile.Variant
	notifier notify.Notifier
	clock    Clock
	delay    time.Duration

	loadOnMount bool
	requestIDs  IDGenerator

	queue    *eventQueue
	gen      generation
	ids      atomic.Int64
	inflight atomic.Int64

	settleMu sync.Mutex
	settleCh chan struct{}

	// Loop-owned state. Only the Run goroutine touches these.
	runCtx   context.Context
	autoSync bool
	draft    profile.UserProfile
	dirty    bool
	load     *loadOp
	saves    map[int64]*saveOp
	auto     *autoOp
	stopWait func() bool
}

type loadOp struct {
	id      int64
	cancel  context.CancelCauseFunc
	waiters []chan Outcome
}

type saveOp struct {
	id     int64
	cancel context.CancelCauseFunc
	reply  chan Outcome
}

type autoOp struct {
	gen    int64
	cancel context.CancelCauseFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithAutoSyncDelay sets the debounce window. Default: DefaultAutoSyncDelay.
func WithAutoSyncDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithAutoSync overrides the variant's auto-sync default.
func WithAutoSync(on bool) Option {
	return func(e *Engine) {
		e.autoSync = on
	}
}

// WithNotifier sets the notification sink. Default: notify.Discard.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLoadOnMount makes Run start a load as soon as it begins, if a
// session exists.
func WithLoadOnMount() Option {
	return func(e *Engine) {
		e.loadOnMount = true
	}
}

// New creates an engine for one form variant.
//
// The initial draft is the variant-normalized store snapshot.
func New(profiles Profiles, sessions Sessions, gw Gateway, variant *profile.Variant, opts ...Option) *Engine {
	e := &Engine{
		profiles:   profiles,
		sessions:   sessions,
		gateway:    gw,
		variant:    variant,
		notifier:   notify.Discard,
		clock:      SystemClock{},
		delay:      DefaultAutoSyncDelay,
		requestIDs: UUIDv7Generator{},
		queue:      newEventQueue(),
		settleCh:   make(chan struct{}),
		autoSync:   variant.AutoSync,
		saves:      make(map[int64]*saveOp),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.draft = variant.Normalize(profiles.Read())
	return e
}

// Run starts the event loop.
// Blocks until ctx is cancelled or Stop is called. Either way every
// in-flight operation is cancelled with ErrTornDown and nothing it
// produces afterwards reaches the store.
//
// Event handling never fails the loop: errors are turned into outcomes
// and notifications, and logged for diagnostics.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine starting",
		"variant", e.variant.Name,
		"auto_sync", e.autoSync,
		"delay", e.delay,
	)
	e.runCtx = ctx

	if e.loadOnMount {
		e.startLoad(nil)
	}

	for {
		// A completion queued while the loop was busy must not outlive teardown.
		if ctx.Err() != nil {
			return e.stopCancelled(ctx)
		}
		if ev, ok := e.queue.TryDequeue(); ok {
			if err := e.processEvent(ev); err != nil {
				slog.Error("event processing failed",
					"event", fmt.Sprintf("%T", ev),
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return e.stopCancelled(ctx)

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("sync engine stopping: queue closed")
				e.shutdown()
				return nil
			}
		}
	}
}

func (e *Engine) stopCancelled(ctx context.Context) error {
	slog.Info("sync engine stopping: context cancelled")
	e.queue.Close()
	e.shutdown()
	return ctx.Err()
}

// Stop tears the engine down. Run returns once the queue is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to its handler.
// Called only from the Run goroutine.
func (e *Engine) processEvent(ev event) error {
	switch ev := ev.(type) {
	case loadRequest:
		e.startLoad(ev.reply)
	case saveRequest:
		e.handleSave(ev)
	case editRequest:
		e.handleEdit(ev)
	case autoSyncToggle:
		e.handleAutoSyncToggle(ev)
	case upgradeRequest:
		e.handleUpgrade(ev)
	case logoutRequest:
		e.handleLogout(ev)
	case stateQuery:
		ev.reply <- e.state()
		close(ev.reply)
	case flushBarrier:
		close(ev.done)
	case loadDone:
		defer e.finish()
		e.handleLoadDone(ev)
	case saveDone:
		defer e.finish()
		e.handleSaveDone(ev)
	case timerFired:
		e.handleTimerFired(ev)
	case autoSyncDone:
		defer e.finish()
		e.handleAutoSyncDone(ev)
	default:
		return fmt.Errorf("unknown event type: %T", ev)
	}
	return nil
}

// state derives the lifecycle state from what is in flight.
func (e *Engine) state() State {
	switch {
	case e.load != nil:
		return StateLoading
	case len(e.saves) > 0:
		return StateSaving
	case e.auto != nil:
		return StateAutoSyncInFlight
	case e.stopWait != nil:
		return StateAutoSyncPending
	default:
		return StateIdle
	}
}

// shutdown cancels everything in flight and resolves every waiter.
// Called only from the Run goroutine, after the queue is closed.
func (e *Engine) shutdown() {
	e.abortLoad(ErrTornDown)
	for id, op := range e.saves {
		op.cancel(ErrTornDown)
		resolve(op.reply, Outcome{Canceled: true, Err: ErrTornDown})
		delete(e.saves, id)
	}
	e.cancelAutoSync(ErrTornDown)

	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		switch ev.(type) {
		case loadDone, saveDone, autoSyncDone:
			e.finish()
		default:
			ev.abandon()
		}
	}
}

// spawn runs fn in a goroutine tracked by Settle and enqueues its
// completion event.
func (e *Engine) spawn(fn func() event) {
	e.inflight.Add(1)
	go func() {
		if !e.queue.Enqueue(fn()) {
			e.finish()
		}
	}()
}

// finish marks one spawned goroutine's completion as handled.
func (e *Engine) finish() {
	e.inflight.Add(-1)
	e.settleMu.Lock()
	close(e.settleCh)
	e.settleCh = make(chan struct{})
	e.settleMu.Unlock()
}

// opContext derives a cancellable context for one network call.
func (e *Engine) opContext() (context.Context, context.CancelCauseFunc) {
	return context.WithCancelCause(e.runCtx)
}

// abortedByCaller reports whether ctx was cancelled by the engine itself
// rather than failing on the wire. Once the run context is done every
// operation counts as torn down, whatever its own cause says.
func (e *Engine) abortedByCaller(ctx context.Context) bool {
	if e.runCtx.Err() != nil {
		return true
	}
	return ctx.Err() != nil && IsCallerAbort(context.Cause(ctx))
}

// abortCause is the cause reported for an operation abortedByCaller.
func (e *Engine) abortCause(ctx context.Context) error {
	if e.runCtx.Err() != nil {
		return ErrTornDown
	}
	return context.Cause(ctx)
}

func (e *Engine) notify(kind notify.Kind, field string, err error) notify.Kind {
	e.notifier.Notify(notify.Notification{
		Kind:    kind,
		Message: notify.Message(kind),
		Field:   field,
		Err:     err,
		At:      e.clock.Now(),
	})
	return kind
}

// session returns the current session, if any.
func (e *Engine) session() (session.AuthSession, bool) {
	return e.sessions.Get(e.runCtx)
}

// stampSynced records a confirmed remote round trip.
func (e *Engine) stampSynced() error {
	now := e.clock.Now().UTC()
	return e.profiles.Update(e.runCtx, func(p *profile.UserProfile) {
		p.LastSyncedAt = &now
	})
}
