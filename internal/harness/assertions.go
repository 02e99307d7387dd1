package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sqlgraph/internal/graph"
	"github.com/roach88/sqlgraph/internal/model"
)

// Assertion checks committed state or the trace after all steps ran.
type Assertion struct {
	// Type is one of vertex_count, edge_count, property, missing or
	// trace_count.
	Type string `yaml:"type"`

	// Label is the element label counted by vertex_count and edge_count.
	Label string `yaml:"label,omitempty"`

	// Count is the expected number of elements or trace events.
	Count int `yaml:"count"`

	// Target is the element ref checked by property and missing.
	Target string `yaml:"target,omitempty"`

	// Key and Value are the expected property. A null value asserts the
	// property is absent.
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Op is the step operation counted by trace_count.
	Op string `yaml:"op,omitempty"`
}

// Assertion types.
const (
	AssertVertexCount = "vertex_count"
	AssertEdgeCount   = "edge_count"
	AssertProperty    = "property"
	AssertMissing     = "missing"
	AssertTraceCount  = "trace_count"
)

// AssertionError describes a failed assertion with the trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Ref)
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func validateAssertion(index int, a *Assertion, defined func(string) bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertVertexCount, AssertEdgeCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for %s", index, a.Type)
		}
	case AssertProperty:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for property", index)
		}
		fallthrough
	case AssertMissing:
		if !defined(a.Target) {
			return fmt.Errorf("assertions[%d]: target %q is not defined", index, a.Target)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}

// AssertionContext is the state assertions read from.
type AssertionContext struct {
	Ctx   context.Context
	Tx    *graph.Tx
	refs  *refs
	Trace []TraceEvent

	defaultSchema string
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(actx *AssertionContext, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(actx, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(actx *AssertionContext, a Assertion) error {
	switch a.Type {
	case AssertVertexCount:
		return assertCount(actx, a, "VERTEX")
	case AssertEdgeCount:
		return assertCount(actx, a, "EDGE")
	case AssertProperty:
		return assertProperty(actx, a)
	case AssertMissing:
		return assertMissing(actx, a)
	case AssertTraceCount:
		return assertTraceCount(actx.Trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertCount(actx *AssertionContext, a Assertion, kind string) error {
	counts, err := actx.Tx.LabelCounts(actx.Ctx)
	if err != nil {
		return err
	}
	label := model.ParseLabel(a.Label, actx.defaultSchema)
	var got int64
	for _, c := range counts {
		if c.Kind == kind && c.Label == label {
			got = c.Count
		}
	}
	if got != int64(a.Count) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s elements", a.Count, label),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func (actx *AssertionContext) properties(target string) (map[string]any, error) {
	if actx.refs.isEdge(target) {
		id, err := actx.refs.edge(target)
		if err != nil {
			return nil, err
		}
		e, err := actx.Tx.Edge(actx.Ctx, id)
		if err != nil {
			return nil, err
		}
		return e.Properties, nil
	}
	id, _, err := actx.refs.vertex(target)
	if err != nil {
		return nil, err
	}
	v, err := actx.Tx.Vertex(actx.Ctx, id)
	if err != nil {
		return nil, err
	}
	return v.Properties, nil
}

func assertProperty(actx *AssertionContext, a Assertion) error {
	props, err := actx.properties(a.Target)
	if err != nil {
		return err
	}
	got, present := props[a.Key]

	switch {
	case a.Value == nil && present:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s absent", a.Target, a.Key),
			Actual:   model.FormatValue(got),
			Trace:    actx.Trace,
		}
	case a.Value == nil:
		return nil
	case !present:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %s", a.Target, a.Key, model.FormatValue(a.Value)),
			Actual:   "absent",
			Trace:    actx.Trace,
		}
	case model.FormatValue(got) != model.FormatValue(a.Value):
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %s", a.Target, a.Key, model.FormatValue(a.Value)),
			Actual:   model.FormatValue(got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func assertMissing(actx *AssertionContext, a Assertion) error {
	_, err := actx.properties(a.Target)
	if model.IsNotFound(err) {
		return nil
	}
	actual := "element exists"
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s not found", a.Target),
		Actual:   actual,
		Trace:    actx.Trace,
	}
}

// assertTraceCount checks that op appears exactly Count times, counting
// failed steps too.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s exactly %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    trace,
		}
	}
	return nil
}
