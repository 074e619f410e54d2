package engine

import (
	"context"

	"github.com/roach88/hexagram/internal/profile"
)

// event is anything the Run loop processes. Requests come from public
// operations; completions come from network goroutines and timers.
type event interface {
	// abandon resolves the event's waiter when the engine stops before
	// processing it.
	abandon()
}

type loadRequest struct{ reply chan Outcome }

type saveRequest struct {
	draft profile.UserProfile
	reply chan Outcome
}

type editRequest struct {
	draft profile.UserProfile
	reply chan Outcome
}

type autoSyncToggle struct {
	on    bool
	reply chan Outcome
}

type upgradeRequest struct {
	key   string
	reply chan Outcome
}

type logoutRequest struct{ reply chan Outcome }

type stateQuery struct{ reply chan State }

type flushBarrier struct{ done chan struct{} }

// loadDone carries the result of a remote fetch.
type loadDone struct {
	id     int64
	ctx    context.Context
	remote profile.Remote
	err    error
}

// saveDone carries the result of a manual-save push.
type saveDone struct {
	id  int64
	ctx context.Context
	err error
}

// timerFired is the debounce window elapsing for a generation.
type timerFired struct{ gen int64 }

// autoSyncDone carries the result of an auto-sync push.
type autoSyncDone struct {
	gen int64
	ctx context.Context
	err error
}

func (e loadRequest) abandon()    { resolve(e.reply, stoppedOutcome()) }
func (e saveRequest) abandon()    { resolve(e.reply, stoppedOutcome()) }
func (e editRequest) abandon()    { resolve(e.reply, stoppedOutcome()) }
func (e autoSyncToggle) abandon() { resolve(e.reply, stoppedOutcome()) }
func (e upgradeRequest) abandon() { resolve(e.reply, stoppedOutcome()) }
func (e logoutRequest) abandon()  { resolve(e.reply, stoppedOutcome()) }
func (e stateQuery) abandon()     { close(e.reply) }
func (e flushBarrier) abandon()   { close(e.done) }
func (loadDone) abandon()         {}
func (saveDone) abandon()         {}
func (timerFired) abandon()       {}
func (autoSyncDone) abandon()     {}

// resolve delivers the single outcome of an operation.
func resolve(ch chan Outcome, o Outcome) {
	if ch == nil {
		return
	}
	ch <- o
	close(ch)
}

func stoppedOutcome() Outcome {
	return Outcome{Canceled: true, Err: ErrStopped}
}
