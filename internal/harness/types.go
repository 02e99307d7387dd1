package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/sqlgraph/internal/model"
)

// TraceEvent records one executed step. Elements are named by their
// scenario refs, never by database ids, so traces are stable.
type TraceEvent struct {
	Seq        int64             `json:"seq"`
	Op         string            `json:"op"`
	Ref        string            `json:"ref,omitempty"`
	Label      string            `json:"label,omitempty"`
	Out        string            `json:"out,omitempty"`
	In         string            `json:"in,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Result     []string          `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// canonicalMap converts the event for canonical.Marshal.
func (e TraceEvent) canonicalMap() map[string]any {
	m := map[string]any{
		"seq": e.Seq,
		"op":  e.Op,
	}
	for key, value := range map[string]string{
		"ref":   e.Ref,
		"label": e.Label,
		"out":   e.Out,
		"in":    e.In,
		"error": e.Error,
	} {
		if value != "" {
			m[key] = value
		}
	}
	if e.Properties != nil {
		m["properties"] = e.Properties
	}
	if e.Result != nil {
		m["result"] = e.Result
	}
	return m
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// formatProperties renders property values with model.FormatValue.
func formatProperties(props map[string]any) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = model.FormatValue(v)
	}
	return out
}

// refs binds scenario names to created elements.
type refs struct {
	vertices    map[string]model.SchemaTable
	vertexIDs   map[string]int64
	edges       map[string]int64
	vertexNames map[int64]string
	edgeNames   map[int64]string
}

func newRefs() *refs {
	return &refs{
		vertices:    map[string]model.SchemaTable{},
		vertexIDs:   map[string]int64{},
		edges:       map[string]int64{},
		vertexNames: map[int64]string{},
		edgeNames:   map[int64]string{},
	}
}

func (r *refs) bindVertex(name string, id int64, label model.SchemaTable) {
	r.vertices[name] = label
	r.vertexIDs[name] = id
	r.vertexNames[id] = name
}

func (r *refs) bindEdge(name string, id int64) {
	r.edges[name] = id
	r.edgeNames[id] = name
}

func (r *refs) isEdge(name string) bool {
	_, ok := r.edges[name]
	return ok
}

func (r *refs) vertex(name string) (int64, model.SchemaTable, error) {
	id, ok := r.vertexIDs[name]
	if !ok {
		return 0, model.SchemaTable{}, fmt.Errorf("unknown vertex ref %q", name)
	}
	return id, r.vertices[name], nil
}

func (r *refs) edge(name string) (int64, error) {
	id, ok := r.edges[name]
	if !ok {
		return 0, fmt.Errorf("unknown edge ref %q", name)
	}
	return id, nil
}

// vertexName returns the ref bound to id, or "#id" for elements the
// scenario did not create.
func (r *refs) vertexName(id int64) string {
	if name, ok := r.vertexNames[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func (r *refs) edgeName(id int64) string {
	if name, ok := r.edgeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func sortedNames(names []string) []string {
	slices.Sort(names)
	return names
}
