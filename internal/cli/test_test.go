package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tabOpenScenario = `name: tab-open
description: A single open leaves the tab idle.
events:
  - type: redix:tab:opened
    reducer: tab
    source: test
    payload:
      tabId: t1
      url: https://example.com/a
assertions:
  - type: final_state
    path: tabs.t1.status
    expect: idle
`

const resourceReleaseScenario = `name: resource-release
description: Allocation accounting for a single lease.
events:
  - type: redix:resource:allocated
    reducer: resource
    source: test
    payload:
      name: gpu
      bytes: 512
assertions:
  - type: final_state
    path: resources.allocatedBytes
    expect: 512
`

func writeScenarioFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommandRunsScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "tab-open.yaml", tabOpenScenario)

	out, err := execute(t, NewTestCommand, "text", "--scenarios", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tab-open")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	failing := strings.Replace(tabOpenScenario, "expect: idle", "expect: active", 1)
	writeScenarioFile(t, dir, "tab-open.yaml", failing)

	out, err := execute(t, NewTestCommand, "text", "--scenarios", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tab-open")
	assert.Contains(t, out, "assertions[0]")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandGoldenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "tab-open.yaml", tabOpenScenario)
	goldenPath := filepath.Join(dir, "golden", "tab-open.golden")

	out, err := execute(t, NewTestCommand, "text", "--scenarios", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tab-open (golden updated)")
	require.FileExists(t, goldenPath)

	// The recorded trace matches on the next run.
	_, err = execute(t, NewTestCommand, "text", "--scenarios", dir)
	require.NoError(t, err)

	// A stale golden is reported as a mismatch.
	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario":"stale"}`), 0o644))
	out, err = execute(t, NewTestCommand, "text", "--scenarios", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "tab-open.yaml", tabOpenScenario)
	writeScenarioFile(t, dir, "resource-release.yaml", resourceReleaseScenario)

	out, err := execute(t, NewTestCommand, "text", "--scenarios", dir, "--filter", "tab-*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tab-open")
	assert.NotContains(t, out, "resource-release")
	assert.Contains(t, out, "1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	failing := strings.Replace(tabOpenScenario, "expect: idle", "expect: active", 1)
	writeScenarioFile(t, dir, "tab-open.yaml", failing)

	out, err := execute(t, NewTestCommand, "json", "--scenarios", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "E_TEST_FAILED", response.Error.Code)

	data, ok := response.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["failed"])
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand, "text", "--scenarios", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDir(t *testing.T) {
	_, err := execute(t, NewTestCommand, "text",
		"--scenarios", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "a.yaml", tabOpenScenario)
	writeScenarioFile(t, dir, "notes.txt", "not a scenario")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeScenarioFile(t, sub, "b.yml", resourceReleaseScenario)

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = findScenarioFiles(dir, "a*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.yaml", filepath.Base(files[0]))
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("scenarios", "tab-open.yaml"))
	assert.Equal(t, filepath.Join("scenarios", "golden", "tab-open.golden"), got)
}
