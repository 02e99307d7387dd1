package dialect

import (
	"strings"

	"github.com/roach88/sqlgraph/internal/model"
)

// SQLite is the dialect of the embedded engine.
//
// SQLite has no schemas inside one database file, so a non-default schema is
// folded into the table name as "schema.table". Labels never contain '.', which
// keeps the mapping a bijection.
type SQLite struct{}

var _ Dialect = SQLite{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Quote(identifier string) string { return quoteDouble(identifier) }

func (d SQLite) Qualify(schema, table string) string {
	if schema == "" || schema == d.DefaultSchema() {
		return d.Quote(table)
	}
	return d.Quote(schema + "." + table)
}

func (SQLite) DefaultSchema() string { return "public" }

func (SQLite) NeedsSemicolon() bool { return false }

func (SQLite) SupportsSchemas() bool { return false }

func (SQLite) SupportsArrays() bool { return false }

func (SQLite) IDColumnDDL() string { return "INTEGER NOT NULL PRIMARY KEY" }

func (SQLite) SerialIDColumnDDL() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (SQLite) Placeholder(int) string { return "?" }

// FoldIdentifier lowers ASCII letters only. SQLite matches identifiers
// case-insensitively, quoted or not, but leaves other characters alone.
func (SQLite) FoldIdentifier(identifier string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, identifier)
}

// PropertyTypeToSQL avoids DATE/TIMESTAMP declared types so the driver never
// converts temporal text on its own; decoding is driven by the PropertyType.
func (SQLite) PropertyTypeToSQL(pt model.PropertyType) []string {
	switch pt {
	case model.TypeBoolean:
		return []string{"BOOLEAN"}
	case model.TypeByte:
		return []string{"TINYINT"}
	case model.TypeShort:
		return []string{"SMALLINT"}
	case model.TypeInteger:
		return []string{"INTEGER"}
	case model.TypeLong:
		return []string{"BIGINT"}
	case model.TypeFloat:
		return []string{"REAL"}
	case model.TypeDouble:
		return []string{"DOUBLE"}
	case model.TypeString:
		return []string{"TEXT"}
	case model.TypeBytes:
		return []string{"BLOB"}
	case model.TypeLocalDateTime:
		return []string{"TEXT"}
	case model.TypeZonedDateTime:
		return []string{"TEXT", "TEXT"}
	case model.TypeDuration:
		return []string{"BIGINT", "INTEGER"}
	case model.TypeBooleanArray, model.TypeShortArray, model.TypeIntegerArray,
		model.TypeLongArray, model.TypeFloatArray, model.TypeDoubleArray, model.TypeStringArray:
		return []string{"TEXT"}
	default:
		return nil
	}
}
