// Package dialect holds the SQL-generation policy for each supported engine.
//
// A Dialect is a pure policy object with no mutable state. All SQL text in the
// topology and element store is built through it, so the core stays portable
// across engines without touching topology or element logic.
package dialect

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlgraph/internal/model"
)

// Dialect abstracts the differences between SQL engines.
type Dialect interface {
	// Name identifies the dialect, e.g. "sqlite".
	Name() string

	// Quote wraps an identifier in the engine's quote characters.
	Quote(identifier string) string

	// Qualify returns the quoted, schema-qualified name of a table.
	Qualify(schema, table string) string

	// DefaultSchema is the reserved name of the default schema.
	DefaultSchema() string

	// NeedsSemicolon reports whether statements need an explicit terminator.
	NeedsSemicolon() bool

	// SupportsSchemas reports whether CREATE SCHEMA is meaningful.
	SupportsSchemas() bool

	// SupportsArrays reports whether array properties map to native arrays.
	// When false they are stored as JSON text.
	SupportsArrays() bool

	// PropertyTypeToSQL returns one column type per physical column of pt.
	// The first entry is the bare property column; later entries pair with
	// pt.Postfixes() in order.
	PropertyTypeToSQL(pt model.PropertyType) []string

	// IDColumnDDL is the type of the ID column of label tables.
	IDColumnDDL() string

	// SerialIDColumnDDL is the type of the auto-increment ID of registries.
	SerialIDColumnDDL() string

	// Placeholder returns the bind parameter marker for the n-th argument,
	// counting from 1.
	Placeholder(n int) string

	// FoldIdentifier returns the form under which the engine compares a
	// quoted identifier. Two names with the same folded form address the
	// same table or column.
	FoldIdentifier(identifier string) string
}

// Column is one physical column of a property.
type Column struct {
	Name string
	Type string
}

// Columns pairs the column names of a property with their SQL types.
func Columns(d Dialect, property string, pt model.PropertyType) []Column {
	names := model.ColumnNames(property, pt)
	types := d.PropertyTypeToSQL(pt)
	if len(names) != len(types) {
		panic(fmt.Sprintf("dialect %s: %s maps to %d columns, expected %d", d.Name(), pt, len(types), len(names)))
	}
	cols := make([]Column, len(names))
	for i := range names {
		cols[i] = Column{Name: names[i], Type: types[i]}
	}
	return cols
}

// Terminate appends the statement terminator when the dialect needs one.
func Terminate(d Dialect, sql string) string {
	if d.NeedsSemicolon() {
		return sql + ";"
	}
	return sql
}

// QuoteAll quotes each identifier and joins them with ", ".
func QuoteAll(d Dialect, identifiers []string) string {
	quoted := make([]string, len(identifiers))
	for i, id := range identifiers {
		quoted[i] = d.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

// Placeholders returns n comma-separated bind markers starting at argument from.
func Placeholders(d Dialect, from, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(from + i)
	}
	return strings.Join(marks, ", ")
}

// ForName returns the dialect registered under name.
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

func quoteDouble(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
