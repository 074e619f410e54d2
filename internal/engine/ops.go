package engine

import (
	"context"

	"github.com/roach88/hexagram/internal/profile"
)

// submit enqueues a request and returns its outcome channel. A stopped
// engine resolves the channel immediately.
func (e *Engine) submit(ev event, reply chan Outcome) <-chan Outcome {
	if !e.queue.Enqueue(ev) {
		ev.abandon()
	}
	return reply
}

// Load fetches the remote profile and merges it over the local one.
//
// A Load while another is in flight joins it. Without a session the
// outcome has NoSession set and nothing is fetched.
func (e *Engine) Load() <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(loadRequest{reply: reply}, reply)
}

// Save validates draft, commits it locally, then pushes it if a session
// exists. The local commit is never rolled back.
func (e *Engine) Save(draft profile.UserProfile) <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(saveRequest{draft: draft, reply: reply}, reply)
}

// Edit records the current form draft. A change to a watched field
// restarts the auto-sync window when auto-sync applies.
func (e *Engine) Edit(draft profile.UserProfile) <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(editRequest{draft: draft, reply: reply}, reply)
}

// SetAutoSync switches debounced auto-sync on or off. Switching it off
// cancels any pending or in-flight auto-sync.
func (e *Engine) SetAutoSync(on bool) <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(autoSyncToggle{on: on, reply: reply}, reply)
}

// Upgrade moves an ordered level field one tier up and commits it.
func (e *Engine) Upgrade(key string) <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(upgradeRequest{key: key, reply: reply}, reply)
}

// Logout clears the session and silently cancels remote work tied to it.
func (e *Engine) Logout() <-chan Outcome {
	reply := make(chan Outcome, 1)
	return e.submit(logoutRequest{reply: reply}, reply)
}

// State returns the current lifecycle state.
func (e *Engine) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	ev := stateQuery{reply: reply}
	if !e.queue.Enqueue(ev) {
		return "", ErrStopped
	}
	select {
	case s, ok := <-reply:
		if !ok {
			return "", ErrStopped
		}
		return s, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Flush waits until every event enqueued before the call is processed.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !e.queue.Enqueue(flushBarrier{done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		if e.queue.Closed() {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits until no network call is outstanding and every completion
// has been processed. A pending debounce timer does not count.
func (e *Engine) Settle(ctx context.Context) error {
	for {
		e.settleMu.Lock()
		wake := e.settleCh
		e.settleMu.Unlock()

		if err := e.Flush(ctx); err != nil {
			return err
		}
		if e.inflight.Load() == 0 {
			return nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Await blocks for an operation's outcome.
func Await(ctx context.Context, ch <-chan Outcome) (Outcome, error) {
	select {
	case o, ok := <-ch:
		if !ok {
			return Outcome{Canceled: true, Err: ErrStopped}, nil
		}
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
