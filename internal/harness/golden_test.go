package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

// Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_AutoSyncDebounce(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "auto_sync_debounce"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_LogoutAbortsAutoSync(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "logout_aborts_auto_sync"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "auto_sync_debounce")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalTrace_EmptyTrace(t *testing.T) {
	data, err := MarshalTrace("empty", nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"scenario_name\": \"empty\",\n  \"trace\": []\n}\n", string(data))
}

func TestMarshalTrace_OmitsEmptyFields(t *testing.T) {
	data, err := MarshalTrace("one", []TraceEvent{{Type: EventFetch, At: 5}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "fetch"`)
	assert.Contains(t, string(data), `"at_ms": 5`)
	assert.NotContains(t, string(data), "payload")
	assert.NotContains(t, string(data), "kind")
}
