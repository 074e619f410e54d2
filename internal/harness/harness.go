package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/hexagram/internal/engine"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
	"github.com/roach88/hexagram/internal/storage"
	"github.com/roach88/hexagram/internal/testutil"
)

// StepTimeout bounds each flow step. A step that needs longer is stuck.
const StepTimeout = 5 * time.Second

// Epoch is the fake clock's start. Trace offsets are relative to it.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// ScenarioSession is the session a signed-in scenario runs with.
var ScenarioSession = session.AuthSession{
	AccessToken: "scenario-token",
	TokenType:   "Bearer",
	Email:       "scenario@example.com",
	UserID:      "scenario-user",
	Plan:        "free",
}

// Harness drives one scenario through a live engine.
type Harness struct {
	engine   *engine.Engine
	profiles *profile.Store
	sessions *session.Store
	variant  *profile.Variant
	gateway  *scriptedGateway
	clock    *testutil.FakeClock
	trace    *tracer

	// draft is the form state edits and saves start from.
	draft   profile.UserProfile
	pending map[string]pendingOp
}

type pendingOp struct {
	op string
	ch <-chan engine.Outcome
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory stores and a fake clock, so
// the same scenario always produces the same trace.
//
// Execution flow:
// 1. Seed the local profile, session and remote profile
// 2. Start the engine
// 3. Execute flow steps, checking expect clauses
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
	}

	result.Trace = h.trace.snapshot()
	result.State = h.captureState(ctx)
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	variant, ok := profile.BuiltinVariants()[scenario.Variant]
	if !ok {
		return nil, fmt.Errorf("unknown variant %q", scenario.Variant)
	}

	profiles, err := profile.Open(ctx, storage.NewMemory(),
		profile.WithSuffixGenerator(profile.NewFixedSuffix("0000")))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	if len(scenario.Local) > 0 {
		err := profiles.Update(ctx, func(p *profile.UserProfile) {
			for k, v := range scenario.Local {
				_ = p.Set(k, v)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed local profile: %w", err)
		}
	}

	sessions := session.NewStore(storage.NewMemory(), storage.NewMemory())
	if scenario.SignedIn {
		if err := sessions.Persist(ctx, ScenarioSession, true); err != nil {
			return nil, fmt.Errorf("failed to seed session: %w", err)
		}
	}

	clock := testutil.NewFakeClock(Epoch)
	trace := &tracer{}
	gw := newScriptedGateway(clock, trace, scenario.Remote)

	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithNotifier(traceNotifier(trace, Epoch)),
	}
	if scenario.AutoSync != nil {
		opts = append(opts, engine.WithAutoSync(*scenario.AutoSync))
	}
	if scenario.DelayMS > 0 {
		opts = append(opts, engine.WithAutoSyncDelay(time.Duration(scenario.DelayMS)*time.Millisecond))
	}
	if scenario.LoadOnMount {
		opts = append(opts, engine.WithLoadOnMount())
	}

	return &Harness{
		engine:   engine.New(profiles, sessions, gw, variant, opts...),
		profiles: profiles,
		sessions: sessions,
		variant:  variant,
		gateway:  gw,
		clock:    clock,
		trace:    trace,
		draft:    variant.Normalize(profiles.Read()),
		pending:  make(map[string]pendingOp),
	}, nil
}

// executeStep runs one flow step and waits for the engine to go quiet.
// Expect mismatches are recorded on result; other errors abort the run.
func (h *Harness) executeStep(parent context.Context, index int, step FlowStep, result *Result) error {
	ctx, cancel := context.WithTimeout(parent, StepTimeout)
	defer cancel()

	switch step.Op {
	case OpEdit:
		h.apply(step.Set)
		if err := h.await(ctx, index, step, h.engine.Edit(h.draft), result); err != nil {
			return err
		}

	case OpSave:
		h.apply(step.Set)
		if err := h.start(ctx, index, step, h.engine.Save(h.draft), result); err != nil {
			return err
		}

	case OpLoad:
		if err := h.start(ctx, index, step, h.engine.Load(), result); err != nil {
			return err
		}

	case OpUpgrade:
		if err := h.await(ctx, index, step, h.engine.Upgrade(step.Field), result); err != nil {
			return err
		}

	case OpLogout:
		if err := h.await(ctx, index, step, h.engine.Logout(), result); err != nil {
			return err
		}

	case OpAutoSync:
		if err := h.await(ctx, index, step, h.engine.SetAutoSync(step.Enabled), result); err != nil {
			return err
		}

	case OpAdvance:
		h.clock.Advance(time.Duration(step.MS) * time.Millisecond)

	case OpSettle:

	case OpLogin:
		if err := h.sessions.Persist(ctx, ScenarioSession, true); err != nil {
			return err
		}

	case OpFailPush:
		h.gateway.scriptPush(pushScript{status: step.Status})

	case OpFailFetch:
		h.gateway.scriptFetch(step.Status)

	case OpHoldPush:
		h.gateway.scriptPush(pushScript{hold: true})

	case OpRelease:
		if err := h.gateway.release(step.Status); err != nil {
			return err
		}

	case OpAwait:
		p, ok := h.pending[step.ID]
		if !ok {
			return fmt.Errorf("no async operation %q", step.ID)
		}
		delete(h.pending, step.ID)
		step.Op = p.op
		if err := h.await(ctx, index, step, p.ch, result); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	return h.quiesce(ctx)
}

// apply assigns fields onto the draft.
func (h *Harness) apply(fields map[string]string) {
	for k, v := range fields {
		_ = h.draft.Set(k, v)
	}
}

// start awaits ch, or parks it for a later await step when step is async.
func (h *Harness) start(ctx context.Context, index int, step FlowStep, ch <-chan engine.Outcome, result *Result) error {
	if step.Async {
		h.pending[step.ID] = pendingOp{op: step.Op, ch: ch}
		return nil
	}
	return h.await(ctx, index, step, ch, result)
}

// await collects an outcome, updates the draft the way a form would and
// checks the expect clause.
func (h *Harness) await(ctx context.Context, index int, step FlowStep, ch <-chan engine.Outcome, result *Result) error {
	o, err := engine.Await(ctx, ch)
	if err != nil {
		return fmt.Errorf("waiting for outcome: %w", err)
	}

	if o.Err == nil && !o.Canceled && !o.NoSession {
		switch step.Op {
		case OpSave, OpLoad:
			h.draft = h.variant.Normalize(o.Profile)
		case OpUpgrade:
			value, _ := o.Profile.Get(step.Field)
			_ = h.draft.Set(step.Field, value)
		}
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, o) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", index, step.Op, msg))
		}
	}
	return nil
}

// quiesce waits until every queued event is handled and no request is
// in flight. A held push counts as quiet once it has started.
func (h *Harness) quiesce(ctx context.Context) error {
	if err := h.engine.Flush(ctx); err != nil {
		return err
	}
	for {
		err := h.settle(ctx)
		if err == nil || ctx.Err() != nil || !errors.Is(err, context.Canceled) {
			return err
		}
		if h.gateway.holding() {
			return nil
		}
		// The hold ended while settling; settle again.
	}
}

// settle runs Settle until it returns or a push is held.
func (h *Harness) settle(ctx context.Context) error {
	settleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.gateway.heldSignal():
			cancel()
		case <-settleCtx.Done():
		}
	}()
	return h.engine.Settle(settleCtx)
}

func (h *Harness) captureState(ctx context.Context) map[string]map[string]string {
	sess, ok := h.sessions.Get(ctx)
	return map[string]map[string]string{
		TargetLocal: ProfileFields(h.profiles.Read()),
		TargetSession: {
			"signed_in": strconv.FormatBool(ok),
			"email":     sess.Email,
		},
		TargetRemote: h.gateway.remoteState(),
	}
}

// ProfileFields flattens a profile for comparison. lastSyncedAt is the
// clock offset in milliseconds, or "never".
func ProfileFields(p profile.UserProfile) map[string]string {
	out := make(map[string]string, len(profile.FieldKeys)+1)
	for _, key := range profile.FieldKeys {
		out[key], _ = p.Get(key)
	}
	out["lastSyncedAt"] = "never"
	if p.LastSyncedAt != nil {
		out["lastSyncedAt"] = strconv.FormatInt(p.LastSyncedAt.Sub(Epoch).Milliseconds(), 10)
	}
	return out
}

// outcomeCase names an outcome the way expect clauses do.
func outcomeCase(o engine.Outcome) string {
	switch {
	case o.Canceled:
		return CaseCanceled
	case o.Kind != "":
		return string(o.Kind)
	case o.NoSession:
		return CaseNoSession
	case o.Err != nil:
		return CaseError
	default:
		return CaseOK
	}
}

func checkExpect(expect *ExpectClause, o engine.Outcome) []string {
	var errs []string
	if got := outcomeCase(o); got != expect.Case {
		detail := ""
		if o.Err != nil {
			detail = fmt.Sprintf(" (%v)", o.Err)
		}
		errs = append(errs, fmt.Sprintf("expected case %q, got %q%s", expect.Case, got, detail))
	}
	if len(expect.Result) > 0 {
		if msg := matchFields(ProfileFields(o.Profile), expect.Result); msg != "" {
			errs = append(errs, "result "+msg)
		}
	}
	return errs
}
