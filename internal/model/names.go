package model

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Physical naming conventions shared by the topology and the element store.
const (
	VertexPrefix = "V_"
	EdgePrefix   = "E_"

	InSuffix  = "__IN"
	OutSuffix = "__OUT"

	IDColumn = "ID"

	VerticesTable = "VERTICES"
	EdgesTable    = "EDGES"

	VertexSchemaColumn = "VERTEX_SCHEMA"
	VertexTableColumn  = "VERTEX_TABLE"
	EdgeSchemaColumn   = "EDGE_SCHEMA"
	EdgeTableColumn    = "EDGE_TABLE"
)

// SchemaTable identifies a label within a schema.
// Table is the label name without the V_/E_ prefix.
type SchemaTable struct {
	Schema string `json:"schema"`
	Table  string `json:"label"`
}

// ST is a shorthand constructor.
func ST(schema, table string) SchemaTable {
	return SchemaTable{Schema: schema, Table: table}
}

// String returns "schema.table".
func (st SchemaTable) String() string {
	return st.Schema + "." + st.Table
}

// VertexTable returns the physical vertex table name.
func (st SchemaTable) VertexTable() string {
	return VertexPrefix + st.Table
}

// EdgeTable returns the physical edge table name.
func (st SchemaTable) EdgeTable() string {
	return EdgePrefix + st.Table
}

// ForeignKey returns the edge-table column pointing at a vertex of this label.
func (st SchemaTable) ForeignKey(side Side) string {
	return st.Schema + "." + st.Table + side.Suffix()
}

// Less orders by schema then table.
func (st SchemaTable) Less(other SchemaTable) bool {
	if st.Schema != other.Schema {
		return st.Schema < other.Schema
	}
	return st.Table < other.Table
}

// ParseLabel splits "schema.label" into its parts.
// A label without a schema resolves to defaultSchema.
func ParseLabel(label, defaultSchema string) SchemaTable {
	if i := strings.Index(label, "."); i >= 0 {
		return SchemaTable{Schema: label[:i], Table: label[i+1:]}
	}
	return SchemaTable{Schema: defaultSchema, Table: label}
}

// ParseForeignKey decodes an edge-table FK column name into the vertex label
// and side it refers to. ok is false for non-FK columns.
func ParseForeignKey(column, defaultSchema string) (st SchemaTable, side Side, ok bool) {
	var base string
	switch {
	case strings.HasSuffix(column, InSuffix):
		base, side = strings.TrimSuffix(column, InSuffix), SideIn
	case strings.HasSuffix(column, OutSuffix):
		base, side = strings.TrimSuffix(column, OutSuffix), SideOut
	default:
		return SchemaTable{}, 0, false
	}
	return ParseLabel(base, defaultSchema), side, true
}

// ValidateName checks a schema or label name.
func ValidateName(kind, name string) error {
	if name == "" {
		return NewValidationError(kind, fmt.Sprintf("%s name can not be empty", kind))
	}
	if strings.ContainsAny(name, `."`) {
		return NewValidationError(kind, fmt.Sprintf("%s name %q may not contain '.' or '\"'", kind, name))
	}
	if strings.Contains(name, "~~~") {
		return NewValidationError(kind, fmt.Sprintf("%s name %q may not contain '~~~'", kind, name))
	}
	if strings.HasSuffix(name, InSuffix) || strings.HasSuffix(name, OutSuffix) {
		return NewValidationError(kind, fmt.Sprintf("%s name %q may not end in %s or %s", kind, name, InSuffix, OutSuffix))
	}
	return nil
}

// ValidatePropertyKey checks a property key. Caller-supplied ids are rejected.
func ValidatePropertyKey(key string) error {
	if strings.EqualFold(key, IDColumn) {
		return NewValidationError("property", "user supplied ids are not supported")
	}
	return ValidateName("property", key)
}

// ValidateProperty checks a key and its value, returning the value's type.
func ValidateProperty(key string, value any) (PropertyType, error) {
	if err := ValidatePropertyKey(key); err != nil {
		return TypeUnknown, err
	}
	if value == nil || isNilSlice(value) {
		return TypeUnknown, NewValidationError("property", fmt.Sprintf("property value for %q can not be null", key))
	}
	t := TypeOf(value)
	if t == TypeUnknown {
		return TypeUnknown, NewValidationError("property", fmt.Sprintf("property value for %q has unsupported type %T", key, value))
	}
	if !finite(value) {
		return TypeUnknown, NewValidationError("property", fmt.Sprintf("property value for %q must be a finite number", key))
	}
	return t, nil
}

func isNilSlice(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.IsNil()
}

// finite reports whether v holds no NaN or infinite floats.
func finite(v any) bool {
	switch x := v.(type) {
	case float32:
		return isFinite(float64(x))
	case float64:
		return isFinite(x)
	case []float32:
		for _, f := range x {
			if !isFinite(float64(f)) {
				return false
			}
		}
	case []float64:
		for _, f := range x {
			if !isFinite(f) {
				return false
			}
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PropertyTypes validates a property bag and returns its type map.
func PropertyTypes(props map[string]any) (map[string]PropertyType, error) {
	types := make(map[string]PropertyType, len(props))
	for k, v := range props {
		t, err := ValidateProperty(k, v)
		if err != nil {
			return nil, err
		}
		types[k] = t
	}
	return types, nil
}
