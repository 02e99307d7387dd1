package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// InsertVertex creates a vertex of label ("label" or "schema.label") with
// the given properties. The label and any missing property columns are
// created on demand.
func (s *Store) InsertVertex(ctx context.Context, tx *txn.Tx, label string, props map[string]any) (*Vertex, error) {
	st, err := s.resolveLabel("vertex label", label, s.dialect.DefaultSchema())
	if err != nil {
		return nil, err
	}
	types, err := model.PropertyTypes(props)
	if err != nil {
		return nil, err
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	if err := s.topo.EnsureVertexLabelExists(ctx, tx, st, types); err != nil {
		return nil, err
	}

	id, err := s.register(ctx, tx, topology.KindVertex, st)
	if err != nil {
		return nil, err
	}
	if err := s.insertRow(ctx, tx, st.Schema, st.VertexTable(), id, nil, props); err != nil {
		return nil, model.WrapStoreError("insert vertex", err)
	}

	s.logger.Debug("vertex inserted", "id", id, "label", st.String())
	return &Vertex{ID: id, Label: st, Properties: maps.Clone(props)}, nil
}

// InsertEdge creates an edge of label from out to in. A label without a
// schema lives in the out-vertex's schema.
func (s *Store) InsertEdge(ctx context.Context, tx *txn.Tx, label string, out, in VertexRef, props map[string]any) (*Edge, error) {
	st, err := s.resolveLabel("edge label", label, out.Label.Schema)
	if err != nil {
		return nil, err
	}
	types, err := model.PropertyTypes(props)
	if err != nil {
		return nil, err
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	if err := s.topo.EnsureEdgeLabelExists(ctx, tx, st, out.Label, in.Label, types); err != nil {
		return nil, err
	}

	id, err := s.register(ctx, tx, topology.KindEdge, st)
	if err != nil {
		return nil, err
	}
	fks := map[string]int64{
		out.Label.ForeignKey(model.SideOut): out.ID,
		in.Label.ForeignKey(model.SideIn):   in.ID,
	}
	if err := s.insertRow(ctx, tx, st.Schema, st.EdgeTable(), id, fks, props); err != nil {
		return nil, model.WrapStoreError("insert edge", err)
	}

	s.logger.Debug("edge inserted", "id", id, "label", st.String(), "out", out.ID, "in", in.ID)
	return &Edge{ID: id, Label: st, Out: out, In: in, Properties: maps.Clone(props)}, nil
}

// RemoveVertex deletes a vertex and, first, every edge incident to it.
func (s *Store) RemoveVertex(ctx context.Context, tx *txn.Tx, id int64) error {
	if err := tx.ReadWrite(ctx); err != nil {
		return err
	}
	st, err := s.lookup(ctx, tx, topology.KindVertex, id)
	if err != nil {
		return err
	}

	// Edge labels created by other instances since the last poll can still
	// reference the vertex.
	if _, err := s.topo.Refresh(ctx, tx); err != nil {
		return err
	}
	for _, side := range model.DirectionBoth.Sides() {
		for _, edge := range s.topo.EdgeLabelsFor(tx, st, side) {
			if err := s.removeIncidentEdges(ctx, tx, edge, st.ForeignKey(side), id); err != nil {
				return model.WrapStoreError("remove vertex", err)
			}
		}
	}

	if err := s.deleteRow(ctx, tx, st.Schema, st.VertexTable(), id); err != nil {
		return model.WrapStoreError("remove vertex", err)
	}
	if err := s.deleteRegistryRow(ctx, tx, model.VerticesTable, id); err != nil {
		return model.WrapStoreError("remove vertex", err)
	}
	s.logger.Debug("vertex removed", "id", id, "label", st.String())
	return nil
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(ctx context.Context, tx *txn.Tx, id int64) error {
	if err := tx.ReadWrite(ctx); err != nil {
		return err
	}
	st, err := s.lookup(ctx, tx, topology.KindEdge, id)
	if err != nil {
		return err
	}
	if err := s.deleteRow(ctx, tx, st.Schema, st.EdgeTable(), id); err != nil {
		return model.WrapStoreError("remove edge", err)
	}
	if err := s.deleteRegistryRow(ctx, tx, model.EdgesTable, id); err != nil {
		return model.WrapStoreError("remove edge", err)
	}
	s.logger.Debug("edge removed", "id", id, "label", st.String())
	return nil
}

// SetVertexProperty sets one property of a vertex, adding the column if needed.
func (s *Store) SetVertexProperty(ctx context.Context, tx *txn.Tx, id int64, key string, value any) error {
	return s.setProperty(ctx, tx, topology.KindVertex, id, key, value)
}

// SetEdgeProperty sets one property of an edge, adding the column if needed.
func (s *Store) SetEdgeProperty(ctx context.Context, tx *txn.Tx, id int64, key string, value any) error {
	return s.setProperty(ctx, tx, topology.KindEdge, id, key, value)
}

func (s *Store) setProperty(ctx context.Context, tx *txn.Tx, kind topology.Kind, id int64, key string, value any) error {
	pt, err := model.ValidateProperty(key, value)
	if err != nil {
		return err
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return err
	}
	st, err := s.lookup(ctx, tx, kind, id)
	if err != nil {
		return err
	}
	if err := s.topo.EnsurePropertiesExist(ctx, tx, kind, st, map[string]model.PropertyType{key: pt}); err != nil {
		return err
	}

	cols, vals, err := encodeProperty(key, value)
	if err != nil {
		return err
	}
	d := s.dialect
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(i+1))
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = %s`,
		d.Qualify(st.Schema, kind.Table(st)), strings.Join(sets, ", "), d.Quote(model.IDColumn), d.Placeholder(len(cols)+1))
	if _, err := tx.Conn().ExecContext(ctx, dialect.Terminate(d, query), append(vals, id)...); err != nil {
		return model.WrapStoreError("set property", err)
	}
	return nil
}

// register allocates an element id from the registry of kind.
func (s *Store) register(ctx context.Context, tx *txn.Tx, kind topology.Kind, st model.SchemaTable) (int64, error) {
	d := s.dialect
	registry, schemaCol, tableCol := model.VerticesTable, model.VertexSchemaColumn, model.VertexTableColumn
	if kind == topology.KindEdge {
		registry, schemaCol, tableCol = model.EdgesTable, model.EdgeSchemaColumn, model.EdgeTableColumn
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (%s) RETURNING %s`,
		d.Qualify(d.DefaultSchema(), registry), d.Quote(schemaCol), d.Quote(tableCol),
		dialect.Placeholders(d, 1, 2), d.Quote(model.IDColumn))

	var id int64
	if err := tx.Conn().QueryRowContext(ctx, dialect.Terminate(d, query), st.Schema, st.Table).Scan(&id); err != nil {
		return 0, model.WrapStoreError("register "+kind.String(), err)
	}
	return id, nil
}

// insertRow writes the label-table row of an element.
func (s *Store) insertRow(ctx context.Context, tx *txn.Tx, schema, table string, id int64, fks map[string]int64, props map[string]any) error {
	cols := []string{model.IDColumn}
	vals := []any{id}
	for _, fk := range slices.Sorted(maps.Keys(fks)) {
		cols = append(cols, fk)
		vals = append(vals, fks[fk])
	}
	for _, key := range slices.Sorted(maps.Keys(props)) {
		c, v, err := encodeProperty(key, props[key])
		if err != nil {
			return err
		}
		cols = append(cols, c...)
		vals = append(vals, v...)
	}

	d := s.dialect
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		d.Qualify(schema, table), dialect.QuoteAll(d, cols), dialect.Placeholders(d, 1, len(vals)))
	_, err := tx.Conn().ExecContext(ctx, dialect.Terminate(d, query), vals...)
	return err
}

// removeIncidentEdges deletes the rows of one edge table whose fk column
// references the vertex, together with their registry rows.
func (s *Store) removeIncidentEdges(ctx context.Context, tx *txn.Tx, edge model.SchemaTable, fk string, vertexID int64) error {
	d := s.dialect
	table := d.Qualify(edge.Schema, edge.EdgeTable())
	registry := d.Qualify(d.DefaultSchema(), model.EdgesTable)

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s = %s)`,
		registry, d.Quote(model.IDColumn), d.Quote(model.IDColumn), table, d.Quote(fk), d.Placeholder(1))
	if _, err := tx.Conn().ExecContext(ctx, dialect.Terminate(d, query), vertexID); err != nil {
		return err
	}
	query = fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, table, d.Quote(fk), d.Placeholder(1))
	_, err := tx.Conn().ExecContext(ctx, dialect.Terminate(d, query), vertexID)
	return err
}

func (s *Store) deleteRow(ctx context.Context, tx *txn.Tx, schema, table string, id int64) error {
	d := s.dialect
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, d.Qualify(schema, table), d.Quote(model.IDColumn), d.Placeholder(1))
	_, err := tx.Conn().ExecContext(ctx, dialect.Terminate(d, query), id)
	return err
}

func (s *Store) deleteRegistryRow(ctx context.Context, tx *txn.Tx, registry string, id int64) error {
	return s.deleteRow(ctx, tx, s.dialect.DefaultSchema(), registry, id)
}
