package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One offline save"
flow:
  - op: save
    set: { displayName: Ada }
    expect:
      case: saved_local
assertions:
  - type: trace_count
    event: push
    count: 0
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "One offline save", scenario.Description)
	assert.Equal(t, "standard", scenario.Variant, "variant defaults to standard")
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, OpSave, scenario.Flow[0].Op)
	assert.Equal(t, "Ada", scenario.Flow[0].Set["displayName"])
	require.NotNil(t, scenario.Flow[0].Expect)
	assert.Equal(t, "saved_local", scenario.Flow[0].Expect.Case)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	content := minimalScenario + "assertion: []\n"
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
flow: [{ op: load }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
flow: [{ op: load }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "description is required",
		},
		{
			name: "unknown variant",
			content: `
name: n
description: d
variant: dating
flow: [{ op: load }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: `unknown variant "dating"`,
		},
		{
			name: "empty flow",
			content: `
name: n
description: d
flow: []
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "flow list is required",
		},
		{
			name: "empty assertions",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: []
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown local field",
			content: `
name: n
description: d
local: { nickname: x }
flow: [{ op: load }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: `local: unknown profile field "nickname"`,
		},
		{
			name: "unknown op",
			content: `
name: n
description: d
flow: [{ op: sync }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: `unknown op "sync"`,
		},
		{
			name: "edit without set",
			content: `
name: n
description: d
flow: [{ op: edit }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "set is required for edit",
		},
		{
			name: "upgrade without field",
			content: `
name: n
description: d
flow: [{ op: upgrade }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "field is required for upgrade",
		},
		{
			name: "advance without ms",
			content: `
name: n
description: d
flow: [{ op: advance }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "ms must be positive",
		},
		{
			name: "fail_push with success status",
			content: `
name: n
description: d
flow: [{ op: fail_push, status: 200 }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "status must be an error status",
		},
		{
			name: "async edit",
			content: `
name: n
description: d
flow: [{ op: edit, set: { age: "30" }, async: true, id: a }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "async is only supported for save and load",
		},
		{
			name: "async without id",
			content: `
name: n
description: d
flow: [{ op: save, async: true }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "async operations need an id",
		},
		{
			name: "await unknown id",
			content: `
name: n
description: d
flow: [{ op: await, id: nope }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: `await references unknown async id "nope"`,
		},
		{
			name: "expect without case",
			content: `
name: n
description: d
flow: [{ op: load, expect: { result: { age: "30" } } }]
assertions: [{ type: trace_count, event: fetch, count: 1 }]
`,
			wantErr: "case is required",
		},
		{
			name: "unknown notify kind",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: [{ type: trace_contains, event: "notify:exploded" }]
`,
			wantErr: `invalid event "notify:exploded"`,
		},
		{
			name: "trace_order without events",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: [{ type: trace_order }]
`,
			wantErr: "events list is required",
		},
		{
			name: "unknown state target",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: [{ type: final_state, target: cache, expect: { age: "30" } }]
`,
			wantErr: `unknown final_state target "cache"`,
		},
		{
			name: "final_state without expect",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: [{ type: final_state, target: local }]
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
flow: [{ op: load }]
assertions: [{ type: eventually }]
`,
			wantErr: `unknown assertion type "eventually"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name matches file name")

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: "Offline save expected to sync"
flow:
  - op: save
    set: { displayName: Ada }
    expect:
      case: synced
assertions:
  - type: trace_count
    event: push
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected case "synced", got "saved_local"`)
}

func TestRun_AssertionFailureRecorded(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_state
description: "Asserts a value the flow never sets"
flow:
  - op: save
    set: { displayName: Ada }
assertions:
  - type: final_state
    target: local
    expect: { displayName: Grace }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `field "displayName" = "Ada", want "Grace"`)
}

func TestRun_ReleaseWithoutHoldAborts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: stray_release
description: "Release with nothing held"
flow:
  - op: release
assertions:
  - type: trace_count
    event: push
    count: 0
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no push is held")
}
