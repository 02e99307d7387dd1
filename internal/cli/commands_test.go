package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlgraph/internal/topology"
)

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

// execJSON runs the CLI against db with JSON output and decodes stdout.
func execJSON[T any](t *testing.T, db string, args ...string) (response[T], int) {
	t.Helper()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	full := append([]string{"--db", db, "--format", "json"}, args...)
	code := Execute(context.Background(), full, stdout, stderr)

	var resp response[T]
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp), "stdout: %s\nstderr: %s", stdout, stderr)
	return resp, code
}

// execText runs the CLI against db with text output.
func execText(t *testing.T, db string, args ...string) (string, string, int) {
	t.Helper()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	full := append([]string{"--db", db}, args...)
	code := Execute(context.Background(), full, stdout, stderr)
	return stdout.String(), stderr.String(), code
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "graph.db")
}

func TestInitCommand(t *testing.T) {
	db := testDB(t)

	resp, code := execJSON[initResult](t, db, "init")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, db, resp.Data.Path)
	assert.NotEmpty(t, resp.Data.Instance)
	assert.FileExists(t, db)

	// A second init leaves the database usable.
	_, code = execJSON[initResult](t, db, "init")
	assert.Equal(t, ExitSuccess, code)
}

func TestVertexCommands(t *testing.T) {
	db := testDB(t)

	marko, code := execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=marko", "--prop", "age:INTEGER=29")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "public.Person", marko.Data.Label)
	assert.Equal(t, map[string]string{"name": "marko", "age": "29"}, marko.Data.Properties)

	id := formatID(marko.Data.ID)
	got, code := execJSON[vertexView](t, db, "vertex", "get", id)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, marko.Data, got.Data)

	_, code = execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=vadas", "--prop", "tags=[a, b]")
	require.Equal(t, ExitSuccess, code)

	list, code := execJSON[[]vertexView](t, db, "vertex", "list", "Person")
	require.Equal(t, ExitSuccess, code)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "[a,b]", list.Data[1].Properties["tags"])

	removed, code := execJSON[message](t, db, "vertex", "rm", id)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Removed vertex "+id, removed.Data.Message)

	missing, code := execJSON[vertexView](t, db, "vertex", "get", id)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "error", missing.Status)
	require.NotNil(t, missing.Error)
	assert.Equal(t, "NOT_FOUND", missing.Error.Code)
}

func TestVertexCommand_InputErrors(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad id", []string{"vertex", "get", "abc"}},
		{"zero id", []string{"vertex", "rm", "0"}},
		{"prop without value", []string{"vertex", "add", "Person", "--prop", "name"}},
		{"unknown type", []string{"vertex", "add", "Person", "--prop", "age:NUMBER=1"}},
		{"unconvertible value", []string{"vertex", "add", "Person", "--prop", "age:INTEGER=old"}},
		{"invalid label", []string{"vertex", "add", "Pers\"on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, code := execJSON[any](t, db, tt.args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Equal(t, "error", resp.Status)
		})
	}
}

func TestEdgeCommands(t *testing.T) {
	db := testDB(t)

	a, code := execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=a")
	require.Equal(t, ExitSuccess, code)
	b, code := execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=b")
	require.Equal(t, ExitSuccess, code)

	edge, code := execJSON[edgeView](t, db, "edge", "add", "knows", formatID(a.Data.ID), formatID(b.Data.ID), "--prop", "weight=0.5")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "public.knows", edge.Data.Label)
	assert.Equal(t, a.Data.ID, edge.Data.Out)
	assert.Equal(t, b.Data.ID, edge.Data.In)
	assert.Equal(t, "0.5", edge.Data.Properties["weight"])

	tests := []struct {
		name  string
		args  []string
		count int
	}{
		{"out of a", []string{"edges", formatID(a.Data.ID), "--direction", "out"}, 1},
		{"in of a", []string{"edges", formatID(a.Data.ID), "--direction", "in"}, 0},
		{"both of b", []string{"edges", formatID(b.Data.ID)}, 1},
		{"label filter", []string{"edges", formatID(a.Data.ID), "--label", "knows"}, 1},
		{"other label", []string{"edges", formatID(a.Data.ID), "--label", "created"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, code := execJSON[[]edgeView](t, db, tt.args...)
			require.Equal(t, ExitSuccess, code)
			assert.Len(t, resp.Data, tt.count)
		})
	}

	_, code = execJSON[message](t, db, "edge", "rm", formatID(edge.Data.ID))
	require.Equal(t, ExitSuccess, code)

	resp, code := execJSON[[]edgeView](t, db, "edges", formatID(a.Data.ID))
	require.Equal(t, ExitSuccess, code)
	assert.Empty(t, resp.Data)

	_, code = execJSON[any](t, db, "edges", formatID(a.Data.ID), "--direction", "sideways")
	assert.Equal(t, ExitCommandError, code)

	_, code = execJSON[any](t, db, "edge", "add", "knows", formatID(a.Data.ID), "999")
	assert.Equal(t, ExitFailure, code)
}

func TestEdgesCommand_Text(t *testing.T) {
	db := testDB(t)

	a, code := execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=a")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := execText(t, db, "edges", formatID(a.Data.ID))
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "no edges\n", stdout)

	_, code = execJSON[edgeView](t, db, "edge", "add", "knows", formatID(a.Data.ID), formatID(a.Data.ID))
	require.Equal(t, ExitSuccess, code)

	stdout, _, code = execText(t, db, "edges", formatID(a.Data.ID), "--direction", "out")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "e[1] public.knows v[1] -> v[1] {}\n", stdout)
}

func TestApplyAndTopologyCommands(t *testing.T) {
	db := testDB(t)
	defs := filepath.Join("..", "harness", "testdata", "definitions", "modern")

	applied, code := execJSON[applyResult](t, db, "apply", defs)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, 2, applied.Data.VertexLabels)
	assert.Equal(t, 2, applied.Data.EdgeLabels)

	topo, code := execJSON[topology.Description](t, db, "topology")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, topo.Data.Schemas, "public")
	require.Len(t, topo.Data.VertexLabels, 2)
	assert.Equal(t, "Person", topo.Data.VertexLabels[0].Label)
	assert.Equal(t, "INTEGER", topo.Data.VertexLabels[0].Properties["age"])
	require.Len(t, topo.Data.EdgeLabels, 2)

	stdout, _, code := execText(t, db, "topology")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "vertex public.Person {age INTEGER, name STRING}")
	assert.Contains(t, stdout, "edge public.knows {weight DOUBLE}")

	_, code = execJSON[any](t, db, "apply", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, code)
}

func TestWatchCommand_Once(t *testing.T) {
	db := testDB(t)

	_, code := execJSON[vertexView](t, db, "vertex", "add", "Person", "--prop", "name=a")
	require.Equal(t, ExitSuccess, code)

	// A fresh process has already loaded everything committed before it started.
	resp, code := execJSON[pollResult](t, db, "watch", "--once")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, 0, resp.Data.Merged)
	assert.Positive(t, resp.Data.Log)
}

func TestVertexCommand_TextOutput(t *testing.T) {
	db := testDB(t)

	stdout, stderr, code := execText(t, db, "vertex", "add", "Person", "--prop", "name=marko")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "v[1] public.Person {name=marko}\n", stdout)

	_, stderr, code = execText(t, db, "vertex", "get", "42")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error: failed to load vertex")
}

func formatID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
