package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// VertexRef identifies a vertex without its properties.
type VertexRef struct {
	ID    int64             `json:"id" yaml:"id"`
	Label model.SchemaTable `json:"label" yaml:"label"`
}

// Vertex is a loaded vertex.
type Vertex struct {
	ID         int64             `json:"id" yaml:"id"`
	Label      model.SchemaTable `json:"label" yaml:"label"`
	Properties map[string]any    `json:"properties" yaml:"properties"`
}

// Ref returns the vertex's identity.
func (v *Vertex) Ref() VertexRef {
	return VertexRef{ID: v.ID, Label: v.Label}
}

// Edge is a loaded edge with both endpoints.
type Edge struct {
	ID         int64             `json:"id" yaml:"id"`
	Label      model.SchemaTable `json:"label" yaml:"label"`
	Out        VertexRef         `json:"out" yaml:"out"`
	In         VertexRef         `json:"in" yaml:"in"`
	Properties map[string]any    `json:"properties" yaml:"properties"`
}

// Other returns the endpoint opposite to the given side.
func (e *Edge) Other(side model.Side) VertexRef {
	if side == model.SideOut {
		return e.In
	}
	return e.Out
}

// endpointColumn is a decoded foreign-key column of an edge row.
type endpointColumn struct {
	vertex model.SchemaTable
	side   model.Side
}

// row is one scanned table row keyed by column name.
type row struct {
	columns   []string
	declTypes map[string]string
	values    map[string]any
}

// scanRows reads all rows of a SELECT * query.
func scanRows(rows *sql.Rows) ([]row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	declTypes := make(map[string]string, len(cols))
	for i, ct := range types {
		declTypes[cols[i]] = ct.DatabaseTypeName()
	}

	var out []row
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := row{columns: cols, declTypes: declTypes, values: make(map[string]any, len(cols))}
		for i, c := range cols {
			r.values[c] = dest[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r row) id() (int64, error) {
	return asInt("ID", r.values[model.IDColumn])
}

// properties decodes the property columns of r. Known properties decode by
// their topology type; unknown columns fall back to the declared SQL type.
func (r row) properties(known map[string]model.PropertyType) (map[string]any, error) {
	props := make(map[string]any)
	for _, col := range r.columns {
		if col == model.IDColumn || strings.Contains(col, "~~~") ||
			strings.HasSuffix(col, model.InSuffix) || strings.HasSuffix(col, model.OutSuffix) {
			continue
		}
		pt, ok := known[col]
		if !ok {
			pt = fallbackType(r.declTypes[col])
		}
		names := model.ColumnNames(col, pt)
		vals := make([]any, len(names))
		for i, n := range names {
			vals[i] = r.values[n]
		}
		v, present, err := decodeProperty(pt, vals)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", col, err)
		}
		if present {
			props[col] = v
		}
	}
	return props, nil
}

// endpoints returns the populated foreign-key columns of an edge row.
// Exactly one IN and one OUT must be set.
func (r row) endpoints(defaultSchema string) (out, in VertexRef, err error) {
	found := map[model.Side][]endpointColumn{}
	ids := map[model.Side]int64{}
	for _, col := range r.columns {
		st, side, ok := model.ParseForeignKey(col, defaultSchema)
		if !ok || r.values[col] == nil {
			continue
		}
		id, err := asInt(col, r.values[col])
		if err != nil {
			return VertexRef{}, VertexRef{}, err
		}
		found[side] = append(found[side], endpointColumn{vertex: st, side: side})
		ids[side] = id
	}
	if len(found[model.SideOut]) != 1 || len(found[model.SideIn]) != 1 {
		return VertexRef{}, VertexRef{}, fmt.Errorf("edge row has %d OUT and %d IN foreign keys set, expected exactly one of each",
			len(found[model.SideOut]), len(found[model.SideIn]))
	}
	out = VertexRef{ID: ids[model.SideOut], Label: found[model.SideOut][0].vertex}
	in = VertexRef{ID: ids[model.SideIn], Label: found[model.SideIn][0].vertex}
	return out, in, nil
}

// decodeVertex builds a Vertex from a V_ row.
func (s *Store) decodeVertex(tx *txn.Tx, st model.SchemaTable, r row) (*Vertex, error) {
	id, err := r.id()
	if err != nil {
		return nil, model.NewConsistencyError("decode vertex", err.Error())
	}
	known, _ := s.topo.Properties(tx, topology.KindVertex, st)
	props, err := r.properties(known)
	if err != nil {
		return nil, &model.Error{Code: model.ErrCodeConsistency, Op: "decode vertex", Message: fmt.Sprintf("vertex %d", id), Err: err}
	}
	return &Vertex{ID: id, Label: st, Properties: props}, nil
}

// decodeEdge builds an Edge from an E_ row.
func (s *Store) decodeEdge(tx *txn.Tx, st model.SchemaTable, r row) (*Edge, error) {
	id, err := r.id()
	if err != nil {
		return nil, model.NewConsistencyError("decode edge", err.Error())
	}
	out, in, err := r.endpoints(s.dialect.DefaultSchema())
	if err != nil {
		return nil, &model.Error{Code: model.ErrCodeConsistency, Op: "decode edge", Message: fmt.Sprintf("edge %d", id), Err: err}
	}
	known, _ := s.topo.Properties(tx, topology.KindEdge, st)
	props, err := r.properties(known)
	if err != nil {
		return nil, &model.Error{Code: model.ErrCodeConsistency, Op: "decode edge", Message: fmt.Sprintf("edge %d", id), Err: err}
	}
	return &Edge{ID: id, Label: st, Out: out, In: in, Properties: props}, nil
}

// selectWhere loads the rows of a table whose column equals id, by ID.
func (s *Store) selectWhere(ctx context.Context, tx *txn.Tx, schema, table, column string, id int64) ([]row, error) {
	d := s.dialect
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = %s ORDER BY %s`,
		d.Qualify(schema, table), d.Quote(column), d.Placeholder(1), d.Quote(model.IDColumn))
	rows, err := tx.Conn().QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// lookup resolves an element id through a registry table.
func (s *Store) lookup(ctx context.Context, tx *txn.Tx, kind topology.Kind, id int64) (model.SchemaTable, error) {
	d := s.dialect
	registry, schemaCol, tableCol := model.VerticesTable, model.VertexSchemaColumn, model.VertexTableColumn
	if kind == topology.KindEdge {
		registry, schemaCol, tableCol = model.EdgesTable, model.EdgeSchemaColumn, model.EdgeTableColumn
	}
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = %s`,
		d.Quote(schemaCol), d.Quote(tableCol), d.Qualify(d.DefaultSchema(), registry), d.Quote(model.IDColumn), d.Placeholder(1))

	var st model.SchemaTable
	err := tx.Conn().QueryRowContext(ctx, query, id).Scan(&st.Schema, &st.Table)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SchemaTable{}, model.NewNotFoundError("lookup "+strings.ToLower(kind.String()), fmt.Sprintf("%s with id %d does not exist", strings.ToLower(kind.String()), id))
	}
	if err != nil {
		return model.SchemaTable{}, model.WrapStoreError("lookup "+strings.ToLower(kind.String()), err)
	}
	return st, nil
}

// resolveLabel parses "schema.label" or "label" and validates both parts.
func (s *Store) resolveLabel(kind, label, defaultSchema string) (model.SchemaTable, error) {
	st := model.ParseLabel(label, defaultSchema)
	if err := model.ValidateName("schema", st.Schema); err != nil {
		return model.SchemaTable{}, err
	}
	if err := model.ValidateName(kind, st.Table); err != nil {
		return model.SchemaTable{}, err
	}
	return st, nil
}
