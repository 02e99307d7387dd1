package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertTraceCount(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Op: OpAddVertex, Ref: "a"},
		{Seq: 2, Op: OpAddVertex, Error: "VALIDATION"},
		{Seq: 3, Op: OpCommit},
	}

	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpAddVertex, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpRollback, Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpCommit, Count: 3})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "commit exactly 3 times", aerr.Expected)
	assert.Equal(t, "1 times", aerr.Actual)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertVertexCount,
		Expected: "2 public.Node elements",
		Actual:   "1",
		Trace: []TraceEvent{
			{Seq: 1, Op: OpAddVertex, Ref: "a"},
			{Seq: 2, Op: OpLoad, Ref: "b", Error: "NOT_FOUND"},
		},
	}
	want := "Assertion failed: vertex_count\n" +
		"  Expected: 2 public.Node elements\n" +
		"  Actual: 1\n" +
		"\nFull trace:\n" +
		"  [1] addVertex a\n" +
		"  [2] load b error=NOT_FOUND\n"
	assert.Equal(t, want, err.Error())
}

func TestValidateAssertion(t *testing.T) {
	defined := func(name string) bool { return name == "a" }

	valid := []Assertion{
		{Type: AssertVertexCount, Label: "Node", Count: 1},
		{Type: AssertEdgeCount, Label: "hr.link"},
		{Type: AssertProperty, Target: "a", Key: "name", Value: "x"},
		{Type: AssertProperty, Target: "a", Key: "name"},
		{Type: AssertMissing, Target: "a"},
		{Type: AssertTraceCount, Op: OpCommit, Count: 2},
	}
	for i, a := range valid {
		assert.NoError(t, validateAssertion(i, &a, defined), a.Type)
	}

	invalid := []Assertion{
		{},
		{Type: AssertEdgeCount},
		{Type: AssertProperty, Target: "a"},
		{Type: AssertMissing, Target: "b"},
		{Type: AssertTraceCount},
		{Type: "final_state"},
	}
	for i, a := range invalid {
		assert.Error(t, validateAssertion(i, &a, defined), "%+v", a)
	}
}
