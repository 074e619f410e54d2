package engine

import (
	"log/slog"

	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
)

// startLoad begins a load, or joins the one in flight. reply may be nil
// for loads the engine starts itself.
func (e *Engine) startLoad(reply chan Outcome) {
	if e.load != nil {
		if reply != nil {
			e.load.waiters = append(e.load.waiters, reply)
		}
		return
	}

	sess, ok := e.session()
	if !ok {
		slog.Debug("load skipped: no session")
		resolve(reply, Outcome{NoSession: true, Profile: e.profiles.Read()})
		return
	}

	ctx, cancel := e.opContext()
	op := &loadOp{id: e.ids.Add(1), cancel: cancel}
	if reply != nil {
		op.waiters = append(op.waiters, reply)
	}
	e.load = op

	reqCtx, requestID := e.requestContext(ctx)
	slog.Debug("load started", "id", op.id, "request_id", requestID)
	e.spawn(func() event {
		remote, err := e.gateway.FetchProfile(reqCtx, sess)
		return loadDone{id: op.id, ctx: ctx, remote: remote, err: err}
	})
}

// handleLoadDone merges a fetched profile over the current snapshot.
//
// The merge runs against the snapshot at completion time, not at request
// time, so local commits made while the load was in flight are the
// fallback for fields the remote omits.
func (e *Engine) handleLoadDone(ev loadDone) {
	op := e.load
	if op == nil || op.id != ev.id {
		slog.Debug("discarding stale load result", "id", ev.id)
		return
	}
	e.load = nil
	aborted, cause := e.abortedByCaller(ev.ctx), e.abortCause(ev.ctx)
	op.cancel(nil)
	if aborted {
		e.resolveLoad(op, Outcome{Canceled: true, Err: cause})
		return
	}

	if ev.err != nil {
		slog.Warn("profile load failed", "error", ev.err)
		err := &SyncError{Code: ErrCodeTransport, Op: "load", Err: ev.err}
		kind := e.notify(notify.KindLoadFailed, "", err)
		e.resolveLoad(op, Outcome{Kind: kind, Err: err, Profile: e.profiles.Read()})
		return
	}

	now := e.clock.Now().UTC()
	err := e.profiles.Update(e.runCtx, func(p *profile.UserProfile) {
		merged := e.variant.Merge(*p, ev.remote)
		merged.LastSyncedAt = &now
		*p = merged
	})
	if err != nil {
		slog.Error("failed to commit loaded profile", "error", err)
		serr := &SyncError{Code: ErrCodeLocalWrite, Op: "load", Err: err}
		kind := e.notify(notify.KindLoadFailed, "", serr)
		e.resolveLoad(op, Outcome{Kind: kind, Err: serr, Profile: e.profiles.Read()})
		return
	}

	current := e.profiles.Read()
	e.draft = e.variant.Normalize(current)
	slog.Debug("profile loaded", "id", op.id, "fields", len(ev.remote))
	e.resolveLoad(op, Outcome{Profile: current})
}

// abortLoad cancels the in-flight load. Its result will be discarded.
func (e *Engine) abortLoad(cause error) {
	op := e.load
	if op == nil {
		return
	}
	e.load = nil
	op.cancel(cause)
	e.resolveLoad(op, Outcome{Canceled: true, Err: cause})
}

func (e *Engine) resolveLoad(op *loadOp, o Outcome) {
	for _, w := range op.waiters {
		resolve(w, o)
	}
	op.waiters = nil
}
