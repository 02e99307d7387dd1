package topology

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
)

// Kind distinguishes vertex labels from edge labels.
type Kind int

const (
	KindVertex Kind = iota + 1
	KindEdge
)

// String returns the value stored in the KIND metadata column.
func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "VERTEX"
	case KindEdge:
		return "EDGE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Table returns the physical table name of label st.
func (k Kind) Table(st model.SchemaTable) string {
	if k == KindEdge {
		return st.EdgeTable()
	}
	return st.VertexTable()
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "VERTEX":
		return KindVertex, nil
	case "EDGE":
		return KindEdge, nil
	default:
		return 0, fmt.Errorf("invalid label kind %q", s)
	}
}

// Endpoint is one foreign-key column of an edge table: the vertex label it
// points at and the side of the edge it represents.
type Endpoint struct {
	Vertex model.SchemaTable
	Side   model.Side
}

// Column returns the edge-table column name of the endpoint.
func (e Endpoint) Column() string {
	return e.Vertex.ForeignKey(e.Side)
}

func (e Endpoint) less(o Endpoint) bool {
	if e.Vertex != o.Vertex {
		return e.Vertex.Less(o.Vertex)
	}
	return e.Side < o.Side
}

// catalog is one layer of topology: either the committed view or the
// additions of a single transaction. Label maps hold the property types; an
// empty map still records the label's existence.
type catalog struct {
	schemas   map[string]struct{}
	labels    map[Kind]map[model.SchemaTable]map[string]model.PropertyType
	endpoints map[model.SchemaTable]map[Endpoint]struct{}
}

func newCatalog() *catalog {
	return &catalog{
		schemas: make(map[string]struct{}),
		labels: map[Kind]map[model.SchemaTable]map[string]model.PropertyType{
			KindVertex: {},
			KindEdge:   {},
		},
		endpoints: make(map[model.SchemaTable]map[Endpoint]struct{}),
	}
}

func (c *catalog) empty() bool {
	return len(c.schemas) == 0 && len(c.labels[KindVertex]) == 0 &&
		len(c.labels[KindEdge]) == 0 && len(c.endpoints) == 0
}

func (c *catalog) addSchema(name string) {
	c.schemas[name] = struct{}{}
}

func (c *catalog) addLabel(kind Kind, st model.SchemaTable) {
	if _, ok := c.labels[kind][st]; !ok {
		c.labels[kind][st] = make(map[string]model.PropertyType)
	}
}

// addProperty records a property, returning an error when the label already
// holds the key with another type.
func (c *catalog) addProperty(kind Kind, st model.SchemaTable, name string, pt model.PropertyType) error {
	c.addLabel(kind, st)
	props := c.labels[kind][st]
	if existing, ok := props[name]; ok && existing != pt {
		return fmt.Errorf("%s %s property %q is %s, not %s", kind, st, name, existing, pt)
	}
	props[name] = pt
	return nil
}

func (c *catalog) addEndpoint(edge model.SchemaTable, ep Endpoint) {
	c.addLabel(KindEdge, edge)
	set, ok := c.endpoints[edge]
	if !ok {
		set = make(map[Endpoint]struct{})
		c.endpoints[edge] = set
	}
	set[ep] = struct{}{}
}

// merge adds every entry of other to c. Property type conflicts keep the
// existing type and are returned for logging.
func (c *catalog) merge(other *catalog) []error {
	var conflicts []error
	for s := range other.schemas {
		c.addSchema(s)
	}
	for kind, labels := range other.labels {
		for st, props := range labels {
			c.addLabel(kind, st)
			for name, pt := range props {
				if err := c.addProperty(kind, st, name, pt); err != nil {
					conflicts = append(conflicts, err)
				}
			}
		}
	}
	for edge, eps := range other.endpoints {
		for ep := range eps {
			c.addEndpoint(edge, ep)
		}
	}
	return conflicts
}

// layers is a stack of catalogs consulted together: the committed view first,
// then the overlay of the calling transaction if it has one.
type layers []*catalog

func (l layers) hasSchema(name string) bool {
	for _, c := range l {
		if _, ok := c.schemas[name]; ok {
			return true
		}
	}
	return false
}

func (l layers) hasLabel(kind Kind, st model.SchemaTable) bool {
	for _, c := range l {
		if _, ok := c.labels[kind][st]; ok {
			return true
		}
	}
	return false
}

// properties returns a merged copy of the label's properties.
func (l layers) properties(kind Kind, st model.SchemaTable) (map[string]model.PropertyType, bool) {
	var out map[string]model.PropertyType
	for _, c := range l {
		props, ok := c.labels[kind][st]
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]model.PropertyType, len(props))
		}
		for k, v := range props {
			out[k] = v
		}
	}
	return out, out != nil
}

func (l layers) hasEndpoint(edge model.SchemaTable, ep Endpoint) bool {
	for _, c := range l {
		if _, ok := c.endpoints[edge][ep]; ok {
			return true
		}
	}
	return false
}

// endpoints returns the sorted endpoints of an edge label.
func (l layers) endpoints(edge model.SchemaTable) []Endpoint {
	seen := make(map[Endpoint]struct{})
	for _, c := range l {
		for ep := range c.endpoints[edge] {
			seen[ep] = struct{}{}
		}
	}
	out := make([]Endpoint, 0, len(seen))
	for ep := range seen {
		out = append(out, ep)
	}
	slices.SortFunc(out, compareEndpoints)
	return out
}

// edgeLabelsFor returns the sorted edge labels with an endpoint at (vertex, side).
func (l layers) edgeLabelsFor(vertex model.SchemaTable, side model.Side) []model.SchemaTable {
	want := Endpoint{Vertex: vertex, Side: side}
	seen := make(map[model.SchemaTable]struct{})
	for _, c := range l {
		for edge, eps := range c.endpoints {
			if _, ok := eps[want]; ok {
				seen[edge] = struct{}{}
			}
		}
	}
	out := make([]model.SchemaTable, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	slices.SortFunc(out, compareSchemaTables)
	return out
}

// missingProperties checks props against the label's known properties. It returns the
// properties that are still missing, or a ValidationError on a type mismatch.
func (l layers) missingProperties(kind Kind, st model.SchemaTable, props map[string]model.PropertyType) (map[string]model.PropertyType, error) {
	known, _ := l.properties(kind, st)
	var missing map[string]model.PropertyType
	for name, pt := range props {
		existing, ok := known[name]
		if ok && existing != pt {
			return nil, model.NewValidationError("ensure property",
				fmt.Sprintf("%s %s property %q already exists as %s, got %s", kind, st, name, existing, pt))
		}
		if !ok {
			if missing == nil {
				missing = make(map[string]model.PropertyType)
			}
			missing[name] = pt
		}
	}
	return missing, nil
}

// clash finds a known label of kind, other than st, whose physical table
// folds to the same name as st's.
func (l layers) clash(d dialect.Dialect, kind Kind, st model.SchemaTable) (model.SchemaTable, bool) {
	want := d.FoldIdentifier(d.Qualify(st.Schema, kind.Table(st)))
	for _, c := range l {
		for other := range c.labels[kind] {
			if other != st && d.FoldIdentifier(d.Qualify(other.Schema, kind.Table(other))) == want {
				return other, true
			}
		}
	}
	return model.SchemaTable{}, false
}

// checkIdentifiers rejects a label or property whose physical name the
// engine cannot tell apart from a different existing one, or from another
// name in props.
func (l layers) checkIdentifiers(d dialect.Dialect, kind Kind, st model.SchemaTable, props map[string]model.PropertyType) error {
	if other, ok := l.clash(d, kind, st); ok {
		return model.NewValidationError("ensure label",
			fmt.Sprintf("%s label %s clashes with existing label %s", strings.ToLower(kind.String()), st, other))
	}

	known, _ := l.properties(kind, st)
	seen := make(map[string]string, len(known)+len(props))
	for name := range known {
		seen[d.FoldIdentifier(name)] = name
	}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		key := d.FoldIdentifier(name)
		if other, ok := seen[key]; ok && other != name {
			return model.NewValidationError("ensure property",
				fmt.Sprintf("%s %s property %q clashes with property %q", kind, st, name, other))
		}
		seen[key] = name
	}
	return nil
}

func compareSchemaTables(a, b model.SchemaTable) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

func compareEndpoints(a, b Endpoint) int {
	switch {
	case a.less(b):
		return -1
	case b.less(a):
		return 1
	default:
		return 0
	}
}
