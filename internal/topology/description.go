package topology

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/sqlgraph/internal/canonical"
	"github.com/roach88/sqlgraph/internal/model"
)

// Description is a sorted, serializable rendering of a topology layer.
// It is both the committed snapshot shown to users and the payload of a
// topology change notification.
type Description struct {
	Schemas      []string               `json:"schemas" yaml:"schemas"`
	VertexLabels []LabelDescription     `json:"vertexLabels" yaml:"vertexLabels"`
	EdgeLabels   []EdgeLabelDescription `json:"edgeLabels" yaml:"edgeLabels"`
}

// LabelDescription describes a vertex label.
type LabelDescription struct {
	Schema     string            `json:"schema" yaml:"schema"`
	Label      string            `json:"label" yaml:"label"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

// EdgeLabelDescription describes an edge label and its endpoints.
type EdgeLabelDescription struct {
	Schema     string                `json:"schema" yaml:"schema"`
	Label      string                `json:"label" yaml:"label"`
	Properties map[string]string     `json:"properties" yaml:"properties"`
	Endpoints  []EndpointDescription `json:"endpoints" yaml:"endpoints"`
}

// EndpointDescription is one foreign-key linkage of an edge label.
type EndpointDescription struct {
	Schema string `json:"schema" yaml:"schema"`
	Label  string `json:"label" yaml:"label"`
	Side   string `json:"side" yaml:"side"`
}

func describe(c *catalog) Description {
	d := Description{
		Schemas:      make([]string, 0, len(c.schemas)),
		VertexLabels: []LabelDescription{},
		EdgeLabels:   []EdgeLabelDescription{},
	}
	for s := range c.schemas {
		d.Schemas = append(d.Schemas, s)
	}
	sort.Strings(d.Schemas)

	for _, st := range sortedLabels(c.labels[KindVertex]) {
		d.VertexLabels = append(d.VertexLabels, LabelDescription{
			Schema:     st.Schema,
			Label:      st.Table,
			Properties: propertyNames(c.labels[KindVertex][st]),
		})
	}

	edges := make(map[model.SchemaTable]struct{})
	for st := range c.labels[KindEdge] {
		edges[st] = struct{}{}
	}
	for st := range c.endpoints {
		edges[st] = struct{}{}
	}
	for _, st := range sortedLabels(edges) {
		eps := layers{c}.endpoints(st)
		ed := EdgeLabelDescription{
			Schema:     st.Schema,
			Label:      st.Table,
			Properties: propertyNames(c.labels[KindEdge][st]),
			Endpoints:  make([]EndpointDescription, len(eps)),
		}
		for i, ep := range eps {
			ed.Endpoints[i] = EndpointDescription{Schema: ep.Vertex.Schema, Label: ep.Vertex.Table, Side: ep.Side.String()}
		}
		d.EdgeLabels = append(d.EdgeLabels, ed)
	}
	return d
}

func sortedLabels[V any](m map[model.SchemaTable]V) []model.SchemaTable {
	out := make([]model.SchemaTable, 0, len(m))
	for st := range m {
		out = append(out, st)
	}
	slices.SortFunc(out, compareSchemaTables)
	return out
}

func propertyNames(props map[string]model.PropertyType) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v.String()
	}
	return out
}

// MarshalCanonical renders the description as canonical JSON.
func (d Description) MarshalCanonical() ([]byte, error) {
	schemas := make([]any, len(d.Schemas))
	for i, s := range d.Schemas {
		schemas[i] = s
	}
	vertices := make([]any, len(d.VertexLabels))
	for i, l := range d.VertexLabels {
		vertices[i] = map[string]any{
			"schema":     l.Schema,
			"label":      l.Label,
			"properties": l.Properties,
		}
	}
	edges := make([]any, len(d.EdgeLabels))
	for i, l := range d.EdgeLabels {
		eps := make([]any, len(l.Endpoints))
		for j, ep := range l.Endpoints {
			eps[j] = map[string]any{"schema": ep.Schema, "label": ep.Label, "side": ep.Side}
		}
		edges[i] = map[string]any{
			"schema":     l.Schema,
			"label":      l.Label,
			"properties": l.Properties,
			"endpoints":  eps,
		}
	}
	return canonical.Marshal(map[string]any{
		"schemas":      schemas,
		"vertexLabels": vertices,
		"edgeLabels":   edges,
	})
}

// ParseDescription decodes a notification payload.
func ParseDescription(payload []byte) (Description, error) {
	var d Description
	if err := json.Unmarshal(payload, &d); err != nil {
		return Description{}, fmt.Errorf("parse topology payload: %w", err)
	}
	return d, nil
}

// catalog converts the description back into a catalog layer.
func (d Description) catalog() (*catalog, error) {
	c := newCatalog()
	for _, s := range d.Schemas {
		c.addSchema(s)
	}
	for _, l := range d.VertexLabels {
		st := model.ST(l.Schema, l.Label)
		c.addLabel(KindVertex, st)
		if err := addPropertyNames(c, KindVertex, st, l.Properties); err != nil {
			return nil, err
		}
	}
	for _, l := range d.EdgeLabels {
		st := model.ST(l.Schema, l.Label)
		c.addLabel(KindEdge, st)
		if err := addPropertyNames(c, KindEdge, st, l.Properties); err != nil {
			return nil, err
		}
		for _, ep := range l.Endpoints {
			side, err := model.ParseSide(ep.Side)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", st, err)
			}
			c.addEndpoint(st, Endpoint{Vertex: model.ST(ep.Schema, ep.Label), Side: side})
		}
	}
	return c, nil
}

func addPropertyNames(c *catalog, kind Kind, st model.SchemaTable, props map[string]string) error {
	for name, typ := range props {
		pt, err := model.ParsePropertyType(typ)
		if err != nil {
			return fmt.Errorf("%s %s property %q: %w", kind, st, name, err)
		}
		if err := c.addProperty(kind, st, name, pt); err != nil {
			return err
		}
	}
	return nil
}
