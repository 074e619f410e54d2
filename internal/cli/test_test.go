package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: offline_edit
description: "Offline save commits locally"
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

const failingScenario = `
name: wrong_expectation
description: "Expects a sync while signed out"
flow:
  - op: save
    set: { displayName: Ada }
    expect:
      case: synced
assertions:
  - type: trace_count
    event: push
    count: 0
`

const pushingScenario = `
name: signed_in_save
description: "Signed-in save pushes once"
signed_in: true
flow:
  - op: save
    set: { region: Japan }
    expect:
      case: synced
assertions:
  - type: trace_count
    event: push
    count: 1
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestTestCommand_AllPass(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "offline_edit.yaml", passingScenario)
	writeScenario(t, dir, "signed_in_save.yaml", pushingScenario)

	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", dir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "✓ offline_edit")
	assert.Contains(t, res.stdout, "✓ signed_in_save")
	assert.Contains(t, res.stdout, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "offline_edit.yaml", passingScenario)
	writeScenario(t, dir, "wrong_expectation.yaml", failingScenario)

	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", dir)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "✗ wrong_expectation")
	assert.Contains(t, res.stdout, `expected case "synced", got "saved_local"`)
	assert.Contains(t, res.stdout, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "offline_edit.yaml", passingScenario)
	writeScenario(t, dir, "wrong_expectation.yaml", failingScenario)

	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", dir, "--filter", "offline_*")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "wrong_expectation")
	assert.Contains(t, res.stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_UpdateThenCompareGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "signed_in_save.yaml", pushingScenario)
	cfg := testConfig(t, "http://example.test")

	res := runCLI(t, cfg, "", "test", dir, "--update")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "✓ signed_in_save (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "signed_in_save.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "signed_in_save"`)
	assert.Contains(t, string(golden), `"region": "JP"`)

	res = runCLI(t, cfg, "", "test", dir)
	require.NoError(t, res.err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "signed_in_save.golden"), []byte("{}\n"), 0644))
	res = runCLI(t, cfg, "", "test", dir)
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "trace does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_expectation.yaml", failingScenario)

	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", dir, "--format", "json")
	require.Error(t, res.err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeScenario, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", dir)
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "✗ broken.yaml")
	assert.Contains(t, res.stdout, "failed to load scenario")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", "/nonexistent/scenarios")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestTestCommand_NoScenarios(t *testing.T) {
	res := runCLI(t, testConfig(t, "http://example.test"), "", "test", t.TempDir())
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No scenarios found.")
}
