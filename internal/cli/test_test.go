package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairScenario = `name: pair
description: Two people who know each other
steps:
  - op: addVertex
    ref: a
    label: Person
    properties: {name: a}
  - op: addVertex
    ref: b
    label: Person
    properties: {name: b}
  - op: addEdge
    ref: ab
    label: knows
    out: a
    in: b
  - op: commit
assertions:
  - type: vertex_count
    label: Person
    count: 2
`

const brokenScenario = `name: broken
description: Expects a vertex that was never committed
steps:
  - op: addVertex
    ref: a
    label: Person
  - op: rollback
assertions:
  - type: vertex_count
    label: Person
    count: 1
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// newTestCmd builds a standalone test command; run executes it.
func newTestCmd(format string, out *bytes.Buffer, args ...string) (run func() error) {
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute
}

func TestTestCommandMissingArgs(t *testing.T) {
	run := newTestCmd("text", &bytes.Buffer{})

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	run := newTestCmd("text", &bytes.Buffer{}, "/nonexistent/scenarios")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	run := newTestCmd("text", buf, t.TempDir())

	require.NoError(t, run())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	run := newTestCmd("json", buf, t.TempDir())

	require.NoError(t, run())

	var resp response[TestResult]
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pair.yaml", pairScenario)

	buf := &bytes.Buffer{}
	run := newTestCmd("text", buf, dir)

	require.NoError(t, run())
	assert.Contains(t, buf.String(), "✓ pair")
	assert.Contains(t, buf.String(), "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pair.yaml", pairScenario)
	writeScenario(t, dir, "broken.yaml", brokenScenario)

	buf := &bytes.Buffer{}
	run := newTestCmd("json", buf, dir)

	err := run()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Message string     `json:"message"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Error.Details.Total)
	assert.Equal(t, 1, resp.Error.Details.Passed)
	assert.Equal(t, 1, resp.Error.Details.Failed)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pair.yaml", pairScenario)
	writeScenario(t, dir, "broken.yaml", brokenScenario)

	buf := &bytes.Buffer{}
	run := newTestCmd("text", buf, dir, "--filter", "pa*")

	require.NoError(t, run())
	assert.Contains(t, buf.String(), "1 total")
	assert.NotContains(t, buf.String(), "broken")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "name: bad\nsteps: []\n")

	buf := &bytes.Buffer{}
	run := newTestCmd("text", buf, dir)

	err := run()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ bad.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pair.yaml", pairScenario)

	buf := &bytes.Buffer{}
	run := newTestCmd("text", buf, dir, "--update")
	require.NoError(t, run())
	assert.Contains(t, buf.String(), "golden updated")

	goldenPath := filepath.Join(dir, "golden", "pair.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"op":"addEdge"`)

	// Golden files are not picked up as scenarios.
	buf.Reset()
	run = newTestCmd("text", buf, dir)
	require.NoError(t, run())
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	buf.Reset()
	run = newTestCmd("text", buf, dir)
	err = run()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "pair.golden"), goldenFilePath(filepath.Join("scenarios", "pair.yaml")))
	assert.Equal(t, filepath.Join("golden", "x.golden"), goldenFilePath("x.yml"))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", pairScenario)
	writeScenario(t, dir, "b.yml", pairScenario)
	writeScenario(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	writeScenario(t, filepath.Join(dir, "golden"), "stale.yaml", pairScenario)

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
