package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/sqlgraph/internal/graph"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/schemafile"
	"github.com/roach88/sqlgraph/internal/testutil"
	"github.com/roach88/sqlgraph/internal/topology"
)

// Harness executes scenario steps against one graph.
type Harness struct {
	graph  *graph.Graph
	tx     *graph.Tx
	refs   *refs
	seq    testutil.Sequence
	logger *slog.Logger
}

// Run executes a scenario in a fresh database and returns its result.
//
// Steps share one transaction handle: commit and rollback end the current
// transaction and the next step starts another. Work left uncommitted after
// the last step is rolled back before assertions run. The returned error
// reports infrastructure failures; step and assertion failures are in the
// result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "sqlgraph-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := graph.Open(ctx, graph.Options{
		Path:        filepath.Join(dir, "scenario.db"),
		Logger:      logger,
		IDGenerator: topology.NewFixedGenerator("harness"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}
	defer g.Close()

	if scenario.Definitions != "" {
		if err := applyDefinitions(ctx, g, scenario.Definitions); err != nil {
			return nil, err
		}
	}

	h := &Harness{
		graph:  g,
		tx:     g.Begin(),
		refs:   newRefs(),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}
	if err := h.tx.Rollback(); err != nil {
		return nil, fmt.Errorf("failed to roll back trailing work: %w", err)
	}

	verify := g.Begin()
	defer verify.Rollback()
	actx := &AssertionContext{
		Ctx:           ctx,
		Tx:            verify,
		refs:          h.refs,
		Trace:         result.Trace,
		defaultSchema: g.Topology().DefaultSchema(),
	}
	for _, msg := range EvaluateAssertions(actx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func applyDefinitions(ctx context.Context, g *graph.Graph, dir string) error {
	defs, err := schemafile.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}
	return g.Update(ctx, func(tx *graph.Tx) error {
		if err := schemafile.Apply(ctx, g.Topology(), tx.Raw(), defs); err != nil {
			return fmt.Errorf("failed to apply definitions: %w", err)
		}
		return nil
	})
}

// executeStep runs one step, checks its expected error and records the
// trace event.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	event, err := h.execute(ctx, step)
	event.Seq = h.seq.Next()
	event.Op = step.Op

	switch {
	case err != nil:
		code := string(model.CodeOf(err))
		if code == "" {
			code = "ERROR"
		}
		event = TraceEvent{Seq: event.Seq, Op: step.Op, Ref: stepRef(step), Error: code}
		if step.Error == "" {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, err))
		} else if code != step.Error {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s error, got %v", i, step.Op, step.Error, err))
		}
	case step.Error != "":
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s error, got success", i, step.Op, step.Error))
	}

	h.logger.Debug("step completed", "step", i, "op", step.Op, "error", event.Error)
	result.AddTrace(event)
}

func stepRef(step Step) string {
	if step.Ref != "" {
		return step.Ref
	}
	return step.Target
}

func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	switch step.Op {
	case OpAddVertex:
		return h.addVertex(ctx, step)
	case OpAddEdge:
		return h.addEdge(ctx, step)
	case OpLoad:
		return h.load(ctx, step)
	case OpEdges:
		return h.edges(ctx, step)
	case OpVertices:
		return h.vertices(ctx, step)
	case OpSetProperty:
		return h.setProperty(ctx, step)
	case OpRemoveVertex:
		id, _, err := h.refs.vertex(step.Target)
		if err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Ref: step.Target}, h.tx.RemoveVertex(ctx, id)
	case OpRemoveEdge:
		id, err := h.refs.edge(step.Target)
		if err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Ref: step.Target}, h.tx.RemoveEdge(ctx, id)
	case OpCommit:
		return TraceEvent{}, h.tx.Commit(ctx)
	case OpRollback:
		return TraceEvent{}, h.tx.Rollback()
	}
	return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) addVertex(ctx context.Context, step Step) (TraceEvent, error) {
	props, err := step.values()
	if err != nil {
		return TraceEvent{}, err
	}
	v, err := h.tx.AddVertex(ctx, step.Label, props)
	if err != nil {
		return TraceEvent{}, err
	}
	h.refs.bindVertex(step.Ref, v.ID, v.Label)
	return TraceEvent{
		Ref:        step.Ref,
		Label:      v.Label.String(),
		Properties: formatProperties(v.Properties),
	}, nil
}

func (h *Harness) vertexRef(name string) (graph.VertexRef, error) {
	id, label, err := h.refs.vertex(name)
	if err != nil {
		return graph.VertexRef{}, err
	}
	return graph.VertexRef{ID: id, Label: label}, nil
}

func (h *Harness) addEdge(ctx context.Context, step Step) (TraceEvent, error) {
	out, err := h.vertexRef(step.Out)
	if err != nil {
		return TraceEvent{}, err
	}
	in, err := h.vertexRef(step.In)
	if err != nil {
		return TraceEvent{}, err
	}
	props, err := step.values()
	if err != nil {
		return TraceEvent{}, err
	}
	e, err := h.tx.AddEdge(ctx, step.Label, out, in, props)
	if err != nil {
		return TraceEvent{}, err
	}
	h.refs.bindEdge(step.Ref, e.ID)
	return TraceEvent{
		Ref:        step.Ref,
		Label:      e.Label.String(),
		Out:        step.Out,
		In:         step.In,
		Properties: formatProperties(e.Properties),
	}, nil
}

func (h *Harness) load(ctx context.Context, step Step) (TraceEvent, error) {
	if h.refs.isEdge(step.Target) {
		id, err := h.refs.edge(step.Target)
		if err != nil {
			return TraceEvent{}, err
		}
		e, err := h.tx.Edge(ctx, id)
		if err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{
			Ref:        step.Target,
			Label:      e.Label.String(),
			Out:        h.refs.vertexName(e.Out.ID),
			In:         h.refs.vertexName(e.In.ID),
			Properties: formatProperties(e.Properties),
		}, nil
	}

	id, _, err := h.refs.vertex(step.Target)
	if err != nil {
		return TraceEvent{}, err
	}
	v, err := h.tx.Vertex(ctx, id)
	if err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{
		Ref:        step.Target,
		Label:      v.Label.String(),
		Properties: formatProperties(v.Properties),
	}, nil
}

func direction(step Step) (model.Direction, error) {
	if step.Direction == "" {
		return model.DirectionBoth, nil
	}
	d, err := model.ParseDirection(step.Direction)
	if err != nil {
		return 0, model.NewValidationError("direction", err.Error())
	}
	return d, nil
}

func (h *Harness) edges(ctx context.Context, step Step) (TraceEvent, error) {
	v, err := h.vertexRef(step.Target)
	if err != nil {
		return TraceEvent{}, err
	}
	dir, err := direction(step)
	if err != nil {
		return TraceEvent{}, err
	}
	edges, err := h.tx.Edges(ctx, v, dir, step.Labels...)
	if err != nil {
		return TraceEvent{}, err
	}
	names := make([]string, 0, len(edges))
	for _, e := range edges {
		names = append(names, h.refs.edgeName(e.ID))
	}
	return TraceEvent{Ref: step.Target, Result: sortedNames(names)}, nil
}

func (h *Harness) vertices(ctx context.Context, step Step) (TraceEvent, error) {
	v, err := h.vertexRef(step.Target)
	if err != nil {
		return TraceEvent{}, err
	}
	dir, err := direction(step)
	if err != nil {
		return TraceEvent{}, err
	}
	vertices, err := h.tx.Vertices(ctx, v, dir, step.Labels...)
	if err != nil {
		return TraceEvent{}, err
	}
	names := make([]string, 0, len(vertices))
	for _, adj := range vertices {
		names = append(names, h.refs.vertexName(adj.ID))
	}
	return TraceEvent{Ref: step.Target, Result: sortedNames(names)}, nil
}

func (h *Harness) setProperty(ctx context.Context, step Step) (TraceEvent, error) {
	value, err := step.value(step.Key, step.Value)
	if err != nil {
		return TraceEvent{}, err
	}

	var ref graph.ElementRef
	if h.refs.isEdge(step.Target) {
		id, err := h.refs.edge(step.Target)
		if err != nil {
			return TraceEvent{}, err
		}
		ref = graph.EdgeID(id)
	} else {
		id, _, err := h.refs.vertex(step.Target)
		if err != nil {
			return TraceEvent{}, err
		}
		ref = graph.VertexID(id)
	}

	if err := h.tx.SetProperty(ctx, ref, step.Key, value); err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{
		Ref:        step.Target,
		Properties: map[string]string{step.Key: model.FormatValue(value)},
	}, nil
}
