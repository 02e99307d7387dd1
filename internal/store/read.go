package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// LoadVertex reads a vertex by id.
func (s *Store) LoadVertex(ctx context.Context, tx *txn.Tx, id int64) (*Vertex, error) {
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	st, err := s.lookup(ctx, tx, topology.KindVertex, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.selectWhere(ctx, tx, st.Schema, st.VertexTable(), model.IDColumn, id)
	if err != nil {
		return nil, model.WrapStoreError("load vertex", err)
	}
	if len(rows) == 0 {
		return nil, model.NewConsistencyError("load vertex",
			fmt.Sprintf("vertex %d is registered as %s but has no row in %s", id, st, st.VertexTable()))
	}
	return s.decodeVertex(tx, st, rows[0])
}

// LoadEdge reads an edge by id, with both endpoints.
func (s *Store) LoadEdge(ctx context.Context, tx *txn.Tx, id int64) (*Edge, error) {
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	st, err := s.lookup(ctx, tx, topology.KindEdge, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.selectWhere(ctx, tx, st.Schema, st.EdgeTable(), model.IDColumn, id)
	if err != nil {
		return nil, model.WrapStoreError("load edge", err)
	}
	if len(rows) == 0 {
		return nil, model.NewConsistencyError("load edge",
			fmt.Sprintf("edge %d is registered as %s but has no row in %s", id, st, st.EdgeTable()))
	}
	return s.decodeEdge(tx, st, rows[0])
}

// Edges returns the edges incident to v in the given direction, optionally
// restricted to labels. A label without a schema matches any schema.
// Edges of both directions are returned once even when they loop.
func (s *Store) Edges(ctx context.Context, tx *txn.Tx, v VertexRef, dir model.Direction, labels ...string) ([]*Edge, error) {
	sides := dir.Sides()
	if sides == nil {
		return nil, model.NewValidationError("edges", fmt.Sprintf("invalid direction %d", dir))
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}

	var out []*Edge
	seen := make(map[int64]struct{})
	for _, side := range sides {
		edges, err := s.edgesOnSide(ctx, tx, v, side, labels)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}

// edgesOnSide queries every edge table that has a foreign key for v's label
// on side, keyed by that column.
func (s *Store) edgesOnSide(ctx context.Context, tx *txn.Tx, v VertexRef, side model.Side, labels []string) ([]*Edge, error) {
	candidates := s.topo.EdgeLabelsFor(tx, v.Label, side)
	candidates = slices.DeleteFunc(candidates, func(st model.SchemaTable) bool {
		return !retain(st, labels)
	})

	fk := v.Label.ForeignKey(side)
	var out []*Edge
	for _, edge := range candidates {
		rows, err := s.selectWhere(ctx, tx, edge.Schema, edge.EdgeTable(), fk, v.ID)
		if err != nil {
			return nil, model.WrapStoreError("edges", err)
		}
		for _, r := range rows {
			e, err := s.decodeEdge(tx, edge, r)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// retain reports whether st passes the label filter. An empty filter keeps all.
func retain(st model.SchemaTable, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		want := model.ParseLabel(l, "")
		if want.Table != st.Table {
			continue
		}
		if want.Schema == "" || want.Schema == st.Schema {
			return true
		}
	}
	return false
}

// Vertices returns the vertices at the other end of v's edges.
func (s *Store) Vertices(ctx context.Context, tx *txn.Tx, v VertexRef, dir model.Direction, labels ...string) ([]*Vertex, error) {
	sides := dir.Sides()
	if sides == nil {
		return nil, model.NewValidationError("vertices", fmt.Sprintf("invalid direction %d", dir))
	}
	out := []*Vertex{}
	for _, side := range sides {
		edges, err := s.Edges(ctx, tx, v, sideDirection(side), labels...)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			other, err := s.LoadVertex(ctx, tx, e.Other(side).ID)
			if err != nil {
				return nil, err
			}
			out = append(out, other)
		}
	}
	return out, nil
}

func sideDirection(side model.Side) model.Direction {
	if side == model.SideIn {
		return model.DirectionIn
	}
	return model.DirectionOut
}

// VerticesOfLabel returns every vertex of one label ordered by id. An
// unknown label has no vertices.
func (s *Store) VerticesOfLabel(ctx context.Context, tx *txn.Tx, label string) ([]*Vertex, error) {
	st, err := s.resolveLabel("vertex label", label, s.dialect.DefaultSchema())
	if err != nil {
		return nil, err
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	if !s.topo.HasLabel(tx, topology.KindVertex, st) {
		return []*Vertex{}, nil
	}

	d := s.dialect
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s`, d.Qualify(st.Schema, st.VertexTable()), d.Quote(model.IDColumn))
	rows, err := tx.Conn().QueryContext(ctx, dialect.Terminate(d, query))
	if err != nil {
		return nil, model.WrapStoreError("vertices of label", err)
	}
	defer rows.Close()
	scanned, err := scanRows(rows)
	if err != nil {
		return nil, model.WrapStoreError("vertices of label", err)
	}

	out := make([]*Vertex, 0, len(scanned))
	for _, r := range scanned {
		v, err := s.decodeVertex(tx, st, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LabelCount is the number of registered elements of one label.
type LabelCount struct {
	Kind  string            `json:"kind" yaml:"kind"`
	Label model.SchemaTable `json:"label" yaml:"label"`
	Count int64             `json:"count" yaml:"count"`
}

// LabelCounts counts registry rows per label, vertices first.
func (s *Store) LabelCounts(ctx context.Context, tx *txn.Tx) ([]LabelCount, error) {
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}
	d := s.dialect
	registries := []struct {
		kind      topology.Kind
		table     string
		schemaCol string
		tableCol  string
	}{
		{topology.KindVertex, model.VerticesTable, model.VertexSchemaColumn, model.VertexTableColumn},
		{topology.KindEdge, model.EdgesTable, model.EdgeSchemaColumn, model.EdgeTableColumn},
	}

	var out []LabelCount
	for _, reg := range registries {
		query := fmt.Sprintf(`SELECT %[1]s, %[2]s, COUNT(*) FROM %[3]s GROUP BY %[1]s, %[2]s ORDER BY %[1]s, %[2]s`,
			d.Quote(reg.schemaCol), d.Quote(reg.tableCol), d.Qualify(d.DefaultSchema(), reg.table))
		rows, err := tx.Conn().QueryContext(ctx, dialect.Terminate(d, query))
		if err != nil {
			return nil, model.WrapStoreError("label counts", err)
		}
		for rows.Next() {
			c := LabelCount{Kind: reg.kind.String()}
			if err := rows.Scan(&c.Label.Schema, &c.Label.Table, &c.Count); err != nil {
				rows.Close()
				return nil, model.WrapStoreError("label counts", err)
			}
			out = append(out, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, model.WrapStoreError("label counts", err)
		}
	}
	return out, nil
}
