package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlgraph/internal/graph"
	"github.com/roach88/sqlgraph/internal/model"
)

// vertexView is the output form of a vertex. Property values are rendered
// as text.
type vertexView struct {
	ID         int64             `json:"id" yaml:"id"`
	Label      string            `json:"label" yaml:"label"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

func newVertexView(v *graph.Vertex) vertexView {
	return vertexView{ID: v.ID, Label: v.Label.String(), Properties: formatValues(v.Properties)}
}

func (v vertexView) String() string {
	return fmt.Sprintf("v[%d] %s %s", v.ID, v.Label, formatProps(v.Properties))
}

// edgeView is the output form of an edge.
type edgeView struct {
	ID         int64             `json:"id" yaml:"id"`
	Label      string            `json:"label" yaml:"label"`
	Out        int64             `json:"out" yaml:"out"`
	In         int64             `json:"in" yaml:"in"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

func newEdgeView(e *graph.Edge) edgeView {
	return edgeView{
		ID:         e.ID,
		Label:      e.Label.String(),
		Out:        e.Out.ID,
		In:         e.In.ID,
		Properties: formatValues(e.Properties),
	}
}

func (e edgeView) String() string {
	return fmt.Sprintf("e[%d] %s v[%d] -> v[%d] %s", e.ID, e.Label, e.Out, e.In, formatProps(e.Properties))
}

type vertexList []vertexView

func (l vertexList) String() string {
	if len(l) == 0 {
		return "no vertices"
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

type edgeList []edgeView

func (l edgeList) String() string {
	if len(l) == 0 {
		return "no edges"
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// message is a plain text result.
type message struct {
	Message string `json:"message" yaml:"message"`
}

func (m message) String() string { return m.Message }

func formatValues(props map[string]any) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = model.FormatValue(v)
	}
	return out
}

// formatProps renders properties as {k=v, ...} sorted by key.
func formatProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// parseProps parses --prop flags of the form key=value or key:TYPE=value.
// Untyped values are read as YAML scalars or flow lists: 29 is a LONG,
// 0.5 a DOUBLE, [a, b] a STRING_ARRAY and anything else a STRING.
func parseProps(flags []string) (map[string]any, error) {
	props := make(map[string]any, len(flags))
	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, fmt.Errorf("property %q must be key=value or key:TYPE=value", flag)
		}
		key, typeName, typed := strings.Cut(name, ":")
		if key == "" {
			return nil, fmt.Errorf("property %q has an empty key", flag)
		}

		if typed {
			pt, err := model.ParsePropertyType(strings.ToUpper(typeName))
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			value, err := model.ConvertValue(pt, raw)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			props[key] = value
			continue
		}
		props[key] = inferFlagValue(raw)
	}
	return props, nil
}

func inferFlagValue(raw string) any {
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
		return raw
	}
	value, err := model.InferValue(decoded)
	if err != nil {
		return raw
	}
	return value
}

// parseID parses an element id argument.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s id %q", kind, s))
	}
	return id, nil
}
