package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hexagram/internal/notify"
	"github.com/roach88/hexagram/internal/profile"
)

// Scenario defines a profile sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Variant is the built-in form variant the engine runs with.
	// Defaults to "standard".
	Variant string `yaml:"variant,omitempty"`

	// SignedIn stores a session before the engine starts.
	SignedIn bool `yaml:"signed_in,omitempty"`

	// AutoSync overrides the variant's auto-sync default.
	AutoSync *bool `yaml:"auto_sync,omitempty"`

	// DelayMS overrides the debounce window. Defaults to the engine default.
	DelayMS int `yaml:"delay_ms,omitempty"`

	// LoadOnMount starts a load as soon as the engine runs.
	LoadOnMount bool `yaml:"load_on_mount,omitempty"`

	// Local seeds fields of the stored profile.
	Local map[string]string `yaml:"local,omitempty"`

	// Remote is the profile the gateway returns on fetch.
	Remote map[string]string `yaml:"remote,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one operation in a scenario flow.
type FlowStep struct {
	// Op is the operation: edit, save, load, upgrade, logout, autosync,
	// advance, settle, login, fail_push, fail_fetch, hold_push, release, await.
	Op string `yaml:"op"`

	// Set assigns draft fields before edit or save.
	Set map[string]string `yaml:"set,omitempty"`

	// Field is the level field for upgrade.
	Field string `yaml:"field,omitempty"`

	// Enabled is the auto-sync switch for autosync.
	Enabled bool `yaml:"enabled,omitempty"`

	// MS is the clock advance for advance.
	MS int `yaml:"ms,omitempty"`

	// Status is the HTTP status for fail_push, fail_fetch and release.
	Status int `yaml:"status,omitempty"`

	// Async leaves the operation running; a later await step with the same
	// ID collects its outcome.
	Async bool `yaml:"async,omitempty"`

	// ID names an async operation.
	ID string `yaml:"id,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the outcome is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected operation outcome.
type ExpectClause struct {
	// Case is the expected outcome case: a notification kind (synced,
	// saved_local, sync_failed, load_failed, validation_failed,
	// logged_out), or canceled, no_session, error or ok.
	Case string `yaml:"case"`

	// Result contains expected profile field values after the operation.
	// This is a subset match.
	Result map[string]string `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event appears in the trace
	// - "trace_order": events appear in order
	// - "trace_count": an event appears exactly N times
	// - "final_state": a state target holds the expected values
	Type string `yaml:"type"`

	// Event is the event key: fetch, push or notify:<kind>
	// (used by trace_contains and trace_count).
	Event string `yaml:"event,omitempty"`

	// Payload is a subset of the pushed fields (used by trace_contains).
	Payload map[string]string `yaml:"payload,omitempty"`

	// Field is the notification field (used by trace_contains).
	Field string `yaml:"field,omitempty"`

	// At is the expected clock offset in milliseconds (used by trace_contains).
	At *int64 `yaml:"at,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Target is the state inspected by final_state: local (the stored
	// profile), session (signed_in, email) or remote (the server copy).
	Target string `yaml:"target,omitempty"`

	// Expect contains expected values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Flow operations.
const (
	OpEdit      = "edit"
	OpSave      = "save"
	OpLoad      = "load"
	OpUpgrade   = "upgrade"
	OpLogout    = "logout"
	OpAutoSync  = "autosync"
	OpAdvance   = "advance"
	OpSettle    = "settle"
	OpLogin     = "login"
	OpFailPush  = "fail_push"
	OpFailFetch = "fail_fetch"
	OpHoldPush  = "hold_push"
	OpRelease   = "release"
	OpAwait     = "await"
)

// Final state targets.
const (
	TargetLocal   = "local"
	TargetSession = "session"
	TargetRemote  = "remote"
)

// Outcome cases that are not notification kinds.
const (
	CaseCanceled  = "canceled"
	CaseNoSession = "no_session"
	CaseError     = "error"
	CaseOK        = "ok"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Variant == "" {
		s.Variant = profile.Standard().Name
	}
	if _, ok := profile.BuiltinVariants()[s.Variant]; !ok {
		return fmt.Errorf("unknown variant %q", s.Variant)
	}
	if s.DelayMS < 0 {
		return fmt.Errorf("delay_ms must be non-negative")
	}
	for key := range s.Local {
		if !profile.IsField(key) {
			return fmt.Errorf("local: unknown profile field %q", key)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	asyncIDs := make(map[string]bool)
	for i := range s.Flow {
		if err := validateStep(i, &s.Flow[i], asyncIDs); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single flow step based on its op.
func validateStep(index int, step *FlowStep, asyncIDs map[string]bool) error {
	for key := range step.Set {
		if !profile.IsField(key) {
			return fmt.Errorf("flow[%d]: unknown profile field %q", index, key)
		}
	}

	switch step.Op {
	case OpEdit:
		if len(step.Set) == 0 {
			return fmt.Errorf("flow[%d]: set is required for edit", index)
		}
	case OpSave, OpLoad:
	case OpUpgrade:
		if step.Field == "" {
			return fmt.Errorf("flow[%d]: field is required for upgrade", index)
		}
	case OpLogout, OpAutoSync, OpSettle, OpLogin, OpHoldPush:
	case OpAdvance:
		if step.MS <= 0 {
			return fmt.Errorf("flow[%d]: ms must be positive for advance", index)
		}
	case OpFailPush, OpFailFetch:
		if step.Status < 400 {
			return fmt.Errorf("flow[%d]: status must be an error status for %s", index, step.Op)
		}
	case OpRelease:
		if step.Status != 0 && step.Status < 400 {
			return fmt.Errorf("flow[%d]: status must be 0 or an error status for release", index)
		}
	case OpAwait:
		if !asyncIDs[step.ID] {
			return fmt.Errorf("flow[%d]: await references unknown async id %q", index, step.ID)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if step.Async {
		switch step.Op {
		case OpSave, OpLoad:
		default:
			return fmt.Errorf("flow[%d]: async is only supported for save and load", index)
		}
		if step.ID == "" {
			return fmt.Errorf("flow[%d]: async operations need an id", index)
		}
		if step.Expect != nil {
			return fmt.Errorf("flow[%d]: async operations are checked by await", index)
		}
		asyncIDs[step.ID] = true
	}

	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("flow[%d].expect: case is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if !validEventKey(a.Event) {
			return fmt.Errorf("assertions[%d]: invalid event %q for trace_contains", index, a.Event)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, key := range a.Events {
			if !validEventKey(key) {
				return fmt.Errorf("assertions[%d]: invalid event %q for trace_order", index, key)
			}
		}
	case AssertTraceCount:
		if !validEventKey(a.Event) {
			return fmt.Errorf("assertions[%d]: invalid event %q for trace_count", index, a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		switch a.Target {
		case TargetLocal, TargetSession, TargetRemote:
		default:
			return fmt.Errorf("assertions[%d]: unknown final_state target %q", index, a.Target)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// validEventKey accepts fetch, push and notify:<kind>.
func validEventKey(key string) bool {
	switch key {
	case EventFetch, EventPush:
		return true
	}
	kind, ok := strings.CutPrefix(key, EventNotify+":")
	if !ok {
		return false
	}
	switch notify.Kind(kind) {
	case notify.KindSynced, notify.KindSavedLocal, notify.KindSyncFailed,
		notify.KindLoadFailed, notify.KindValidationFailed, notify.KindLoggedOut:
		return true
	}
	return false
}
