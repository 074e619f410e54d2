package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventFetch, At: 0},
		{Type: EventPush, At: 1000, Payload: map[string]string{"region": "JP", "displayName": "Ada"}},
		{Type: EventNotify, At: 1000, Kind: "synced"},
		{Type: EventPush, At: 2500, Payload: map[string]string{"region": "KR", "displayName": "Ada"}},
		{Type: EventNotify, At: 2500, Kind: "sync_failed", Code: "TRANSPORT"},
	}
}

func TestTraceEventKey(t *testing.T) {
	assert.Equal(t, "fetch", TraceEvent{Type: EventFetch}.Key())
	assert.Equal(t, "push", TraceEvent{Type: EventPush}.Key())
	assert.Equal(t, "notify:logged_out", TraceEvent{Type: EventNotify, Kind: "logged_out"}.Key())
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"key only", Assertion{Event: "push"}, false},
		{"payload subset", Assertion{Event: "push", Payload: map[string]string{"region": "KR"}}, false},
		{"payload value mismatch", Assertion{Event: "push", Payload: map[string]string{"region": "CN"}}, true},
		{"payload key missing", Assertion{Event: "push", Payload: map[string]string{"age": "30"}}, true},
		{"matching offset", Assertion{Event: "push", At: int64Ptr(2500), Payload: map[string]string{"region": "KR"}}, false},
		{"offset of another push", Assertion{Event: "push", At: int64Ptr(1000), Payload: map[string]string{"region": "KR"}}, true},
		{"notify kind", Assertion{Event: "notify:sync_failed"}, false},
		{"absent notify kind", Assertion{Event: "notify:logged_out"}, true},
		{"field filter", Assertion{Event: "notify:synced", Field: "age"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertTraceContains
			err := assertTraceContains(sampleTrace(), tt.assertion)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var assertErr *AssertionError
			require.True(t, errors.As(err, &assertErr))
			assert.Equal(t, AssertTraceContains, assertErr.Type)
			assert.Equal(t, "not found in trace", assertErr.Actual)
			assert.Contains(t, assertErr.Expected, tt.assertion.Event)
		})
	}
}

func TestAssertTraceContains_ValidationField(t *testing.T) {
	trace := []TraceEvent{{Type: EventNotify, Kind: "validation_failed", Field: "age"}}
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "notify:validation_failed", Field: "age"}))
	assert.Error(t, assertTraceContains(trace, Assertion{Event: "notify:validation_failed", Field: "displayName"}))
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantErr bool
	}{
		{"non-consecutive", []string{"fetch", "notify:synced"}, false},
		{"repeated key", []string{"push", "push", "notify:sync_failed"}, false},
		{"wrong order", []string{"notify:sync_failed", "push", "notify:synced"}, true},
		{"too many repeats", []string{"push", "push", "push"}, true},
		{"absent event", []string{"fetch", "notify:logged_out"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "Assertion failed: trace_order")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Event: "push", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Event: "notify:logged_out", Count: 0}))

	err := assertTraceCount(sampleTrace(), Assertion{Event: "fetch", Count: 2})
	require.Error(t, err)
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, "2 occurrences of fetch", assertErr.Expected)
	assert.Equal(t, "1 occurrences", assertErr.Actual)
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]map[string]string{
		TargetLocal:   {"region": "JP", "lastSyncedAt": "never"},
		TargetSession: {"signed_in": "false", "email": ""},
	}

	assert.NoError(t, assertFinalState(state, Assertion{Target: TargetLocal, Expect: map[string]string{"region": "JP"}}))

	err := assertFinalState(state, Assertion{Target: TargetLocal, Expect: map[string]string{"lastSyncedAt": "1000"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "lastSyncedAt" = "never", want "1000"`)

	err = assertFinalState(state, Assertion{Target: TargetRemote, Expect: map[string]string{"region": "JP"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target not captured")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of push",
		Actual:   "2 occurrences",
		Trace:    sampleTrace()[:2],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] +0ms fetch")
	assert.Contains(t, msg, `[2] +1000ms push {displayName="Ada" region="JP"}`)
}

func TestMatchFields(t *testing.T) {
	actual := map[string]string{"a": "1", "b": "2", "c": "3"}
	assert.Empty(t, matchFields(actual, map[string]string{"a": "1", "c": "3"}))
	assert.Empty(t, matchFields(actual, nil))
	assert.Equal(t, `field "b" = "2", want "9"`, matchFields(actual, map[string]string{"b": "9"}))
	assert.Equal(t, `field "z" missing`, matchFields(actual, map[string]string{"z": "1"}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.State = map[string]map[string]string{TargetLocal: {"region": "KR"}}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Event: "push", Count: 2},
		{Type: AssertFinalState, Target: TargetLocal, Expect: map[string]string{"region": "KR"}},
		{Type: AssertTraceContains, Event: "notify:logged_out"},
		{Type: "eventually"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "notify:logged_out")
	assert.Contains(t, errs[1], `unknown assertion type "eventually"`)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
