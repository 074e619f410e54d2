package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/hexagram/internal/normalize"
	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

// handleSave is the manual save: validate, commitLocal, confirmRemote.
func (e *Engine) handleSave(ev saveRequest) {
	if err := e.variant.Validate(ev.draft); err != nil {
		resolve(ev.reply, e.rejectDraft(err))
		return
	}

	normalized, err := e.commitLocal(ev.draft)
	if err != nil {
		serr := &SyncError{Code: ErrCodeLocalWrite, Op: "save", Err: err}
		kind := e.notify(notify.KindSyncFailed, "", serr)
		resolve(ev.reply, Outcome{Kind: kind, Err: serr, Profile: e.profiles.Read()})
		return
	}

	// The save carries the newest data; a pending auto-sync is now stale.
	e.cancelAutoSync(ErrSuperseded)
	e.draft = normalized
	e.dirty = false

	sess, ok := e.session()
	if !ok {
		kind := e.notify(notify.KindSavedLocal, "", nil)
		resolve(ev.reply, Outcome{Kind: kind, NoSession: true, Profile: e.profiles.Read()})
		return
	}

	e.confirmRemote(sess, normalized, ev.reply)
}

// commitLocal writes the normalized draft into the store before any
// network request is issued.
func (e *Engine) commitLocal(draft profile.UserProfile) (profile.UserProfile, error) {
	normalized := e.variant.Normalize(draft)
	err := e.profiles.Update(e.runCtx, func(p *profile.UserProfile) {
		e.variant.Apply(p, normalized)
	})
	if err != nil {
		slog.Error("failed to commit profile locally", "error", err)
		return profile.UserProfile{}, err
	}
	return normalized, nil
}

// confirmRemote pushes a committed profile on behalf of a manual save.
func (e *Engine) confirmRemote(sess session.AuthSession, committed profile.UserProfile, reply chan Outcome) {
	ctx, cancel := e.opContext()
	op := &saveOp{id: e.ids.Add(1), cancel: cancel, reply: reply}
	e.saves[op.id] = op

	payload := e.variant.Payload(committed)
	reqCtx, requestID := e.requestContext(ctx)
	slog.Debug("save started", "id", op.id, "request_id", requestID)
	e.spawn(func() event {
		err := e.gateway.PushProfile(reqCtx, sess, payload)
		return saveDone{id: op.id, ctx: ctx, err: err}
	})
}

func (e *Engine) handleSaveDone(ev saveDone) {
	op, ok := e.saves[ev.id]
	if !ok {
		slog.Debug("discarding stale save result", "id", ev.id)
		return
	}
	delete(e.saves, ev.id)
	aborted, cause := e.abortedByCaller(ev.ctx), e.abortCause(ev.ctx)
	op.cancel(nil)
	if aborted {
		resolve(op.reply, Outcome{Canceled: true, Err: cause})
		return
	}
	defer e.resumeAutoSync()

	if ev.err != nil {
		slog.Warn("profile save failed", "id", ev.id, "error", ev.err)
		err := &SyncError{Code: ErrCodeTransport, Op: "save", Err: ev.err}
		kind := e.notify(notify.KindSyncFailed, "", err)
		resolve(op.reply, Outcome{Kind: kind, Err: err, Profile: e.profiles.Read()})
		return
	}

	if err := e.stampSynced(); err != nil {
		slog.Error("failed to stamp sync time", "error", err)
	}
	kind := e.notify(notify.KindSynced, "", nil)
	resolve(op.reply, Outcome{Kind: kind, Profile: e.profiles.Read()})
}

// rejectDraft reports a local validation failure.
func (e *Engine) rejectDraft(err error) Outcome {
	var field string
	var ve *profile.ValidationError
	if errors.As(err, &ve) {
		field = ve.Field
	}
	serr := &SyncError{Code: ErrCodeValidation, Op: "save", Err: err}
	kind := e.notify(notify.KindValidationFailed, field, serr)
	return Outcome{Kind: kind, Err: serr, Profile: e.profiles.Read()}
}

// handleUpgrade moves an ordered level one tier up.
func (e *Engine) handleUpgrade(ev upgradeRequest) {
	f, ok := e.variant.Field(ev.key)
	if !ok || f.Kind != profile.KindEnumerated {
		resolve(ev.reply, Outcome{
			Err:     fmt.Errorf("field %q is not an upgradable level in variant %s", ev.key, e.variant.Name),
			Profile: e.profiles.Read(),
		})
		return
	}

	current, _ := e.profiles.Read().Get(ev.key)
	next := normalizeNext(f, current)
	if next == f.Normalize(current) {
		resolve(ev.reply, Outcome{Profile: e.profiles.Read()})
		return
	}

	err := e.profiles.Update(e.runCtx, func(p *profile.UserProfile) {
		_ = p.Set(ev.key, next)
	})
	if err != nil {
		serr := &SyncError{Code: ErrCodeLocalWrite, Op: "upgrade", Err: err}
		resolve(ev.reply, Outcome{Err: serr, Profile: e.profiles.Read()})
		return
	}

	draft := e.draft
	_ = draft.Set(ev.key, next)
	e.recordDraft(draft)
	resolve(ev.reply, Outcome{Profile: e.profiles.Read()})
}

// handleLogout clears the session and silently cancels remote work tied to it.
// A manual save already in flight is left to finish.
func (e *Engine) handleLogout(ev logoutRequest) {
	if err := e.sessions.Clear(e.runCtx); err != nil {
		slog.Error("failed to clear session", "error", err)
	}
	e.abortLoad(ErrLoggedOut)
	e.cancelAutoSync(ErrLoggedOut)
	e.dirty = false

	kind := e.notify(notify.KindLoggedOut, "", nil)
	resolve(ev.reply, Outcome{Kind: kind, Profile: e.profiles.Read()})
}

func normalizeNext(f profile.Field, current string) string {
	return normalize.NextTier(f.Normalize(current), f.Domain)
}
