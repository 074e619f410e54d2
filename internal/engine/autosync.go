package engine

import (
	"log/slog"

	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
)

func (e *Engine) handleEdit(ev editRequest) {
	e.recordDraft(ev.draft)
	resolve(ev.reply, Outcome{Profile: e.profiles.Read()})
}

// recordDraft stores the latest form state and restarts the debounce
// window if a watched field changed.
func (e *Engine) recordDraft(draft profile.UserProfile) {
	if !e.variant.Changed(e.draft, draft) {
		return
	}
	e.draft = draft
	e.scheduleAutoSync()
}

// scheduleAutoSync (re)starts the debounce timer under a new generation.
// It does nothing when auto-sync is off or nobody is logged in. During a
// manual save the change is remembered and scheduled once the save ends.
func (e *Engine) scheduleAutoSync() {
	if !e.autoSync {
		return
	}
	if len(e.saves) > 0 {
		e.dirty = true
		return
	}
	if _, ok := e.session(); !ok {
		return
	}

	e.cancelAutoSync(ErrSuperseded)
	gen := e.gen.Next()
	e.stopWait = e.clock.AfterFunc(e.delay, func() {
		e.queue.Enqueue(timerFired{gen: gen})
	})
	slog.Debug("auto-sync scheduled", "generation", gen, "delay", e.delay)
}

// resumeAutoSync schedules edits that arrived while a manual save was in flight.
func (e *Engine) resumeAutoSync() {
	if !e.dirty || len(e.saves) > 0 {
		return
	}
	e.dirty = false
	e.scheduleAutoSync()
}

// cancelAutoSync stops the pending timer and aborts the in-flight
// auto-sync request, then advances the generation so neither can act.
func (e *Engine) cancelAutoSync(cause error) {
	if e.stopWait != nil {
		e.stopWait()
		e.stopWait = nil
	}
	if e.auto != nil {
		slog.Debug("auto-sync aborted", "generation", e.auto.gen, "cause", cause)
		e.auto.cancel(cause)
		e.auto = nil
	}
	e.gen.Next()
}

func (e *Engine) handleTimerFired(ev timerFired) {
	if ev.gen != e.gen.Current() {
		slog.Debug("ignoring stale auto-sync timer", "generation", ev.gen)
		return
	}
	e.stopWait = nil

	if !e.autoSync {
		return
	}
	if len(e.saves) > 0 {
		e.dirty = true
		return
	}
	sess, ok := e.session()
	if !ok {
		return
	}

	// Invalid drafts wait for the user; the form shows the error inline.
	if err := e.variant.Validate(e.draft); err != nil {
		slog.Debug("auto-sync skipped: draft invalid", "error", err)
		return
	}

	committed, err := e.commitLocal(e.draft)
	if err != nil {
		e.notify(notify.KindSyncFailed, "", &SyncError{Code: ErrCodeLocalWrite, Op: "autosync", Err: err})
		return
	}
	e.draft = committed

	ctx, cancel := e.opContext()
	e.auto = &autoOp{gen: ev.gen, cancel: cancel}
	payload := e.variant.Payload(committed)

	reqCtx, requestID := e.requestContext(ctx)
	slog.Debug("auto-sync started", "generation", ev.gen, "request_id", requestID)
	e.spawn(func() event {
		err := e.gateway.PushProfile(reqCtx, sess, payload)
		return autoSyncDone{gen: ev.gen, ctx: ctx, err: err}
	})
}

// handleAutoSyncDone applies an auto-sync result if its generation is
// still current. Success is silent; a genuine failure notifies.
func (e *Engine) handleAutoSyncDone(ev autoSyncDone) {
	if e.auto == nil || e.auto.gen != ev.gen || ev.gen != e.gen.Current() {
		slog.Debug("discarding stale auto-sync result", "generation", ev.gen)
		return
	}
	op := e.auto
	e.auto = nil
	aborted := e.abortedByCaller(ev.ctx)
	op.cancel(nil)
	if aborted {
		return
	}

	if ev.err != nil {
		slog.Warn("auto-sync failed", "generation", ev.gen, "error", ev.err)
		e.notify(notify.KindSyncFailed, "", &SyncError{Code: ErrCodeTransport, Op: "autosync", Err: ev.err})
		return
	}

	if err := e.stampSynced(); err != nil {
		slog.Error("failed to stamp sync time", "error", err)
	}
}

func (e *Engine) handleAutoSyncToggle(ev autoSyncToggle) {
	e.autoSync = ev.on
	if !ev.on {
		e.cancelAutoSync(ErrSuperseded)
		e.dirty = false
	}
	slog.Debug("auto-sync toggled", "on", ev.on)
	resolve(ev.reply, Outcome{Profile: e.profiles.Read()})
}
