package topology

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/txn"
)

// Bootstrap creates the registries and metadata tables if they are missing.
func Bootstrap(ctx context.Context, q txn.Executor, d dialect.Dialect) error {
	for _, stmt := range BootstrapStatements(d) {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

func insertSchema(ctx context.Context, q txn.Executor, d dialect.Dialect, name string) error {
	_, err := q.ExecContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`INSERT INTO %s ("NAME") VALUES (%s)`, metaTable(d, SchemaMetaTable), d.Placeholder(1))), name)
	return err
}

func insertLabel(ctx context.Context, q txn.Executor, d dialect.Dialect, kind Kind, st model.SchemaTable) error {
	_, err := q.ExecContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`INSERT INTO %s ("SCHEMA_NAME", "LABEL_NAME", "KIND") VALUES (%s)`,
		metaTable(d, LabelMetaTable), dialect.Placeholders(d, 1, 3))),
		st.Schema, st.Table, kind.String())
	return err
}

func insertProperty(ctx context.Context, q txn.Executor, d dialect.Dialect, kind Kind, st model.SchemaTable, name string, pt model.PropertyType) error {
	_, err := q.ExecContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`INSERT INTO %s ("SCHEMA_NAME", "LABEL_NAME", "KIND", "NAME", "TYPE") VALUES (%s)`,
		metaTable(d, PropertyMetaTable), dialect.Placeholders(d, 1, 5))),
		st.Schema, st.Table, kind.String(), name, pt.String())
	return err
}

func insertEndpoint(ctx context.Context, q txn.Executor, d dialect.Dialect, edge model.SchemaTable, ep Endpoint) error {
	_, err := q.ExecContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`INSERT INTO %s ("EDGE_SCHEMA", "EDGE_LABEL", "VERTEX_SCHEMA", "VERTEX_LABEL", "DIRECTION") VALUES (%s)`,
		metaTable(d, EndpointMetaTable), dialect.Placeholders(d, 1, 5))),
		edge.Schema, edge.Table, ep.Vertex.Schema, ep.Vertex.Table, ep.Side.String())
	return err
}

// loadCatalog reads the persisted topology.
func loadCatalog(ctx context.Context, q txn.Executor, d dialect.Dialect) (*catalog, error) {
	c := newCatalog()

	err := queryEach(ctx, q, fmt.Sprintf(`SELECT "NAME" FROM %s`, metaTable(d, SchemaMetaTable)), func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		c.addSchema(name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	err = queryEach(ctx, q, fmt.Sprintf(`SELECT "SCHEMA_NAME", "LABEL_NAME", "KIND" FROM %s`, metaTable(d, LabelMetaTable)), func(rows *sql.Rows) error {
		var schema, label, kindName string
		if err := rows.Scan(&schema, &label, &kindName); err != nil {
			return err
		}
		kind, err := parseKind(kindName)
		if err != nil {
			return err
		}
		c.addLabel(kind, model.ST(schema, label))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	err = queryEach(ctx, q, fmt.Sprintf(`SELECT "SCHEMA_NAME", "LABEL_NAME", "KIND", "NAME", "TYPE" FROM %s`, metaTable(d, PropertyMetaTable)), func(rows *sql.Rows) error {
		var schema, label, kindName, name, typ string
		if err := rows.Scan(&schema, &label, &kindName, &name, &typ); err != nil {
			return err
		}
		kind, err := parseKind(kindName)
		if err != nil {
			return err
		}
		pt, err := model.ParsePropertyType(typ)
		if err != nil {
			return fmt.Errorf("property %s.%s.%s: %w", schema, label, name, err)
		}
		return c.addProperty(kind, model.ST(schema, label), name, pt)
	})
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}

	err = queryEach(ctx, q, fmt.Sprintf(`SELECT "EDGE_SCHEMA", "EDGE_LABEL", "VERTEX_SCHEMA", "VERTEX_LABEL", "DIRECTION" FROM %s`, metaTable(d, EndpointMetaTable)), func(rows *sql.Rows) error {
		var edgeSchema, edgeLabel, vertexSchema, vertexLabel, dir string
		if err := rows.Scan(&edgeSchema, &edgeLabel, &vertexSchema, &vertexLabel, &dir); err != nil {
			return err
		}
		side, err := model.ParseSide(dir)
		if err != nil {
			return err
		}
		c.addEndpoint(model.ST(edgeSchema, edgeLabel), Endpoint{Vertex: model.ST(vertexSchema, vertexLabel), Side: side})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}

	return c, nil
}

// queryEach runs query and calls fn for every row.
func queryEach(ctx context.Context, q txn.Executor, query string, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

type logEntry struct {
	id         int64
	instanceID string
	payload    []byte
}

// appendLog writes a notification row and returns its id.
func appendLog(ctx context.Context, q txn.Executor, d dialect.Dialect, instanceID string, payload []byte) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`INSERT INTO %s ("INSTANCE_ID", "PAYLOAD") VALUES (%s) RETURNING "ID"`,
		metaTable(d, LogTable), dialect.Placeholders(d, 1, 2))),
		instanceID, string(payload)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append topology log: %w", err)
	}
	return id, nil
}

// readLog returns the log rows with an id greater than after, in order.
func readLog(ctx context.Context, q txn.Executor, d dialect.Dialect, after int64) ([]logEntry, error) {
	rows, err := q.QueryContext(ctx, dialect.Terminate(d, fmt.Sprintf(
		`SELECT "ID", "INSTANCE_ID", "PAYLOAD" FROM %s WHERE "ID" > %s ORDER BY "ID"`,
		metaTable(d, LogTable), d.Placeholder(1))), after)
	if err != nil {
		return nil, fmt.Errorf("read topology log: %w", err)
	}
	defer rows.Close()

	var entries []logEntry
	for rows.Next() {
		var e logEntry
		var payload string
		if err := rows.Scan(&e.id, &e.instanceID, &payload); err != nil {
			return nil, fmt.Errorf("scan topology log: %w", err)
		}
		e.payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read topology log: %w", err)
	}
	return entries, nil
}

func maxLogID(ctx context.Context, q txn.Executor, d dialect.Dialect) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX("ID"), 0) FROM %s`, metaTable(d, LogTable))).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read topology log position: %w", err)
	}
	return id, nil
}
