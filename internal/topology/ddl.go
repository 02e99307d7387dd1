package topology

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
)

// Reserved metadata tables, all in the default schema.
const (
	SchemaMetaTable   = "sqlg_schema"
	LabelMetaTable    = "sqlg_label"
	PropertyMetaTable = "sqlg_property"
	EndpointMetaTable = "sqlg_edge_endpoint"
	LogTable          = "sqlg_topology_log"
)

// BootstrapStatements returns the DDL creating the global registries and the
// topology metadata tables. Every statement is idempotent.
func BootstrapStatements(d dialect.Dialect) []string {
	text := d.PropertyTypeToSQL(model.TypeString)[0] + " NOT NULL"
	return []string{
		createTable(d, true, model.VerticesTable, []string{
			col(d, model.IDColumn, d.SerialIDColumnDDL()),
			col(d, model.VertexSchemaColumn, text),
			col(d, model.VertexTableColumn, text),
		}, nil),
		createTable(d, true, model.EdgesTable, []string{
			col(d, model.IDColumn, d.SerialIDColumnDDL()),
			col(d, model.EdgeSchemaColumn, text),
			col(d, model.EdgeTableColumn, text),
		}, nil),
		createTable(d, true, SchemaMetaTable, []string{
			col(d, "NAME", text+" PRIMARY KEY"),
		}, nil),
		createTable(d, true, LabelMetaTable, []string{
			col(d, "SCHEMA_NAME", text),
			col(d, "LABEL_NAME", text),
			col(d, "KIND", text),
		}, []string{"SCHEMA_NAME", "LABEL_NAME", "KIND"}),
		createTable(d, true, PropertyMetaTable, []string{
			col(d, "SCHEMA_NAME", text),
			col(d, "LABEL_NAME", text),
			col(d, "KIND", text),
			col(d, "NAME", text),
			col(d, "TYPE", text),
		}, []string{"SCHEMA_NAME", "LABEL_NAME", "KIND", "NAME"}),
		createTable(d, true, EndpointMetaTable, []string{
			col(d, "EDGE_SCHEMA", text),
			col(d, "EDGE_LABEL", text),
			col(d, "VERTEX_SCHEMA", text),
			col(d, "VERTEX_LABEL", text),
			col(d, "DIRECTION", text),
		}, []string{"EDGE_SCHEMA", "EDGE_LABEL", "VERTEX_SCHEMA", "VERTEX_LABEL", "DIRECTION"}),
		createTable(d, true, LogTable, []string{
			col(d, model.IDColumn, d.SerialIDColumnDDL()),
			col(d, "INSTANCE_ID", text),
			col(d, "PAYLOAD", text),
		}, nil),
	}
}

// createSchemaStatement returns the DDL for a schema, or "" when the dialect
// has no schemas.
func createSchemaStatement(d dialect.Dialect, schema string) string {
	if !d.SupportsSchemas() {
		return ""
	}
	return dialect.Terminate(d, "CREATE SCHEMA IF NOT EXISTS "+d.Quote(schema))
}

// createLabelStatements returns the DDL for a new label table. Edge tables get
// one foreign-key column per endpoint, each followed by its index.
func createLabelStatements(d dialect.Dialect, kind Kind, st model.SchemaTable, endpoints []Endpoint, props map[string]model.PropertyType) []string {
	cols := []string{col(d, model.IDColumn, d.IDColumnDDL())}
	for _, ep := range endpoints {
		cols = append(cols, foreignKeyColumn(d, ep))
	}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		for _, c := range dialect.Columns(d, name, props[name]) {
			cols = append(cols, col(d, c.Name, c.Type))
		}
	}

	stmts := []string{createTableIn(d, false, st.Schema, kind.Table(st), cols, nil)}
	for _, ep := range endpoints {
		stmts = append(stmts, indexStatement(d, st, ep))
	}
	return stmts
}

// addPropertyStatements returns one ALTER per physical column of the property.
func addPropertyStatements(d dialect.Dialect, kind Kind, st model.SchemaTable, name string, pt model.PropertyType) []string {
	table := d.Qualify(st.Schema, kind.Table(st))
	var stmts []string
	for _, c := range dialect.Columns(d, name, pt) {
		stmts = append(stmts, dialect.Terminate(d, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, col(d, c.Name, c.Type))))
	}
	return stmts
}

// addEndpointStatements adds a foreign-key column and its index to an edge table.
func addEndpointStatements(d dialect.Dialect, edge model.SchemaTable, ep Endpoint) []string {
	table := d.Qualify(edge.Schema, edge.EdgeTable())
	return []string{
		dialect.Terminate(d, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, foreignKeyColumn(d, ep))),
		indexStatement(d, edge, ep),
	}
}

func foreignKeyColumn(d dialect.Dialect, ep Endpoint) string {
	ref := d.Qualify(ep.Vertex.Schema, ep.Vertex.VertexTable())
	idType := d.PropertyTypeToSQL(model.TypeLong)[0]
	return fmt.Sprintf("%s %s REFERENCES %s (%s)", d.Quote(ep.Column()), idType, ref, d.Quote(model.IDColumn))
}

func indexStatement(d dialect.Dialect, edge model.SchemaTable, ep Endpoint) string {
	name := fmt.Sprintf("IDX_%s_%s_%s", edge.Schema, edge.EdgeTable(), ep.Column())
	return dialect.Terminate(d, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		d.Quote(name), d.Qualify(edge.Schema, edge.EdgeTable()), d.Quote(ep.Column())))
}

func col(d dialect.Dialect, name, typ string) string {
	return d.Quote(name) + " " + typ
}

func createTable(d dialect.Dialect, ifNotExists bool, table string, cols, key []string) string {
	return createTableIn(d, ifNotExists, d.DefaultSchema(), table, cols, key)
}

func createTableIn(d dialect.Dialect, ifNotExists bool, schema, table string, cols, key []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(d.Qualify(schema, table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	if len(key) > 0 {
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(dialect.QuoteAll(d, key))
		b.WriteString(")")
	}
	b.WriteString(")")
	return dialect.Terminate(d, b.String())
}

// metaTable returns the qualified name of a reserved table.
func metaTable(d dialect.Dialect, table string) string {
	return d.Qualify(d.DefaultSchema(), table)
}
