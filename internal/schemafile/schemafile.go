// Package schemafile reads topology definitions written in CUE and applies
// them through the topology cache.
//
// A definition file declares labels per schema:
//
//	schema: public: {
//		vertex: Person: {name: "STRING", age: "INTEGER"}
//		edge: knows: {
//			out: "Person"
//			in:  ["Person", "hr.Employee"]
//			properties: {since: "LONG"}
//		}
//	}
//
// Edge endpoints are vertex labels, optionally schema-qualified, given as a
// string or a list. Unqualified endpoints live in the edge's schema.
package schemafile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// VertexDef declares a vertex label.
type VertexDef struct {
	Label      model.SchemaTable
	Properties map[string]model.PropertyType
}

// EdgeDef declares an edge label and its endpoint vertex labels.
type EdgeDef struct {
	Label      model.SchemaTable
	Out        []model.SchemaTable
	In         []model.SchemaTable
	Properties map[string]model.PropertyType
}

// Definitions is the content of a definition directory, sorted by label.
type Definitions struct {
	Schemas  []string
	Vertices []VertexDef
	Edges    []EdgeDef
}

// Error is a definition error with its CUE source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads every .cue file of dir as one CUE instance.
func Load(dir string) (*Definitions, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", err)
	}
	value := cuecontext.New().BuildInstance(instances[0])
	return Parse(value)
}

// ParseString compiles CUE source and parses it. filename is used in
// error positions.
func ParseString(src, filename string) (*Definitions, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Parse(value)
}

// Parse extracts definitions from a built CUE value.
func Parse(v cue.Value) (*Definitions, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	defs := &Definitions{}

	schemas := v.LookupPath(cue.ParsePath("schema"))
	if !schemas.Exists() {
		return nil, &Error{Field: "schema", Message: "no schema declared", Pos: v.Pos()}
	}
	iter, err := schemas.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		schema := iter.Selector().Unquoted()
		if err := model.ValidateName("schema", schema); err != nil {
			return nil, &Error{Field: "schema." + schema, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		defs.Schemas = append(defs.Schemas, schema)
		if err := parseSchema(defs, schema, iter.Value()); err != nil {
			return nil, err
		}
	}

	slices.Sort(defs.Schemas)
	slices.SortFunc(defs.Vertices, func(a, b VertexDef) int { return compareLabel(a.Label, b.Label) })
	slices.SortFunc(defs.Edges, func(a, b EdgeDef) int { return compareLabel(a.Label, b.Label) })
	return defs, nil
}

func parseSchema(defs *Definitions, schema string, v cue.Value) error {
	if vertices := v.LookupPath(cue.ParsePath("vertex")); vertices.Exists() {
		iter, err := vertices.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			label := iter.Selector().Unquoted()
			field := fmt.Sprintf("schema.%s.vertex.%s", schema, label)
			if err := model.ValidateName("vertex label", label); err != nil {
				return &Error{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
			}
			props, err := parseProperties(field, iter.Value())
			if err != nil {
				return err
			}
			defs.Vertices = append(defs.Vertices, VertexDef{Label: model.ST(schema, label), Properties: props})
		}
	}

	if edges := v.LookupPath(cue.ParsePath("edge")); edges.Exists() {
		iter, err := edges.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			label := iter.Selector().Unquoted()
			field := fmt.Sprintf("schema.%s.edge.%s", schema, label)
			if err := model.ValidateName("edge label", label); err != nil {
				return &Error{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
			}
			def, err := parseEdge(field, model.ST(schema, label), iter.Value())
			if err != nil {
				return err
			}
			defs.Edges = append(defs.Edges, def)
		}
	}
	return nil
}

func parseEdge(field string, st model.SchemaTable, v cue.Value) (EdgeDef, error) {
	def := EdgeDef{Label: st, Properties: map[string]model.PropertyType{}}
	var err error
	if def.Out, err = parseEndpoints(field+".out", st.Schema, v.LookupPath(cue.ParsePath("out"))); err != nil {
		return def, err
	}
	if def.In, err = parseEndpoints(field+".in", st.Schema, v.LookupPath(cue.ParsePath("in"))); err != nil {
		return def, err
	}
	if props := v.LookupPath(cue.ParsePath("properties")); props.Exists() {
		if def.Properties, err = parseProperties(field+".properties", props); err != nil {
			return def, err
		}
	}
	return def, nil
}

// parseEndpoints accepts a label string or a non-empty list of them.
func parseEndpoints(field, schema string, v cue.Value) ([]model.SchemaTable, error) {
	if !v.Exists() {
		return nil, &Error{Field: field, Message: "endpoint is required", Pos: v.Pos()}
	}
	var names []string
	if s, err := v.String(); err == nil {
		names = []string{s}
	} else {
		list, err := v.List()
		if err != nil {
			return nil, &Error{Field: field, Message: "must be a label or a list of labels", Pos: v.Pos()}
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return nil, &Error{Field: field, Message: "at least one endpoint is required", Pos: v.Pos()}
	}

	out := make([]model.SchemaTable, 0, len(names))
	for _, name := range names {
		st := model.ParseLabel(name, schema)
		if err := model.ValidateName("vertex label", st.Table); err != nil {
			return nil, &Error{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		out = append(out, st)
	}
	return out, nil
}

// parseProperties reads a struct of property name to type name.
func parseProperties(field string, v cue.Value) (map[string]model.PropertyType, error) {
	props := map[string]model.PropertyType{}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		if err := model.ValidatePropertyKey(name); err != nil {
			return nil, &Error{Field: field + "." + name, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		typeName, err := iter.Value().String()
		if err != nil {
			return nil, &Error{Field: field + "." + name, Message: "property type must be a string", Pos: iter.Value().Pos()}
		}
		pt, err := model.ParsePropertyType(typeName)
		if err != nil {
			return nil, &Error{Field: field + "." + name, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		props[name] = pt
	}
	return props, nil
}

// Apply ensures every schema, vertex label and edge label of defs within tx.
// Vertex labels come first so edge endpoints exist; an edge is created once
// per out/in endpoint pair.
func Apply(ctx context.Context, topo *topology.Topology, tx *txn.Tx, defs *Definitions) error {
	for _, schema := range defs.Schemas {
		if err := topo.EnsureSchemaExists(ctx, tx, schema); err != nil {
			return err
		}
	}
	for _, v := range defs.Vertices {
		if err := topo.EnsureVertexLabelExists(ctx, tx, v.Label, v.Properties); err != nil {
			return fmt.Errorf("vertex %s: %w", v.Label, err)
		}
	}
	for _, e := range defs.Edges {
		for _, out := range e.Out {
			for _, in := range e.In {
				if err := topo.EnsureEdgeLabelExists(ctx, tx, e.Label, out, in, e.Properties); err != nil {
					return fmt.Errorf("edge %s (%s -> %s): %w", e.Label, out, in, err)
				}
			}
		}
	}
	return nil
}

func compareLabel(a, b model.SchemaTable) int {
	if a.Less(b) {
		return -1
	}
	if b.Less(a) {
		return 1
	}
	return 0
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
