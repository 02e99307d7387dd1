package dialect

import (
	"strconv"

	"github.com/roach88/sqlgraph/internal/model"
)

// Postgres is the SQL policy for PostgreSQL: real schemas, native arrays.
//
// Only SQL generation is provided. The topology log reader tracks a single
// high-water mark on the log ID, which relies on log rows committing in ID
// order. SQLite guarantees this by serializing writers at BEGIN IMMEDIATE;
// BIGSERIAL ids under concurrent Postgres writers do not, and a row that
// commits behind a larger ID would never be merged.
type Postgres struct{}

var _ Dialect = Postgres{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Quote(identifier string) string { return quoteDouble(identifier) }

func (d Postgres) Qualify(schema, table string) string {
	if schema == "" {
		schema = d.DefaultSchema()
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

func (Postgres) DefaultSchema() string { return "public" }

func (Postgres) NeedsSemicolon() bool { return true }

func (Postgres) SupportsSchemas() bool { return true }

func (Postgres) SupportsArrays() bool { return true }

func (Postgres) IDColumnDDL() string { return "BIGINT NOT NULL PRIMARY KEY" }

func (Postgres) SerialIDColumnDDL() string { return "BIGSERIAL PRIMARY KEY" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// FoldIdentifier returns identifier unchanged: quoted names are case-sensitive.
func (Postgres) FoldIdentifier(identifier string) string { return identifier }

func (Postgres) PropertyTypeToSQL(pt model.PropertyType) []string {
	switch pt {
	case model.TypeBoolean:
		return []string{"BOOLEAN"}
	case model.TypeByte, model.TypeShort:
		return []string{"SMALLINT"}
	case model.TypeInteger:
		return []string{"INTEGER"}
	case model.TypeLong:
		return []string{"BIGINT"}
	case model.TypeFloat:
		return []string{"REAL"}
	case model.TypeDouble:
		return []string{"DOUBLE PRECISION"}
	case model.TypeString:
		return []string{"TEXT"}
	case model.TypeBytes:
		return []string{"BYTEA"}
	case model.TypeLocalDateTime:
		return []string{"TIMESTAMP"}
	case model.TypeZonedDateTime:
		return []string{"TIMESTAMP WITH TIME ZONE", "TEXT"}
	case model.TypeDuration:
		return []string{"BIGINT", "INTEGER"}
	case model.TypeBooleanArray:
		return []string{"BOOLEAN[]"}
	case model.TypeShortArray:
		return []string{"SMALLINT[]"}
	case model.TypeIntegerArray:
		return []string{"INTEGER[]"}
	case model.TypeLongArray:
		return []string{"BIGINT[]"}
	case model.TypeFloatArray:
		return []string{"REAL[]"}
	case model.TypeDoubleArray:
		return []string{"DOUBLE PRECISION[]"}
	case model.TypeStringArray:
		return []string{"TEXT[]"}
	default:
		return nil
	}
}
