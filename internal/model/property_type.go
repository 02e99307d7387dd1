package model

import (
	"fmt"
	"time"
)

// PropertyType is the semantic type of a property.
// Each type maps to one or more physical columns; auxiliary columns are named
// by appending the postfixes returned by Postfixes to the property name.
type PropertyType int

const (
	TypeUnknown PropertyType = iota
	TypeBoolean
	TypeByte
	TypeShort
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeLocalDateTime
	TypeZonedDateTime
	TypeDuration
	TypeBooleanArray
	TypeShortArray
	TypeIntegerArray
	TypeLongArray
	TypeFloatArray
	TypeDoubleArray
	TypeStringArray
)

// Postfixes for auxiliary columns.
const (
	ZonePostfix  = "~~~zone"
	NanosPostfix = "~~~nanos"
)

var propertyTypeNames = map[PropertyType]string{
	TypeBoolean:       "BOOLEAN",
	TypeByte:          "BYTE",
	TypeShort:         "SHORT",
	TypeInteger:       "INTEGER",
	TypeLong:          "LONG",
	TypeFloat:         "FLOAT",
	TypeDouble:        "DOUBLE",
	TypeString:        "STRING",
	TypeBytes:         "BYTES",
	TypeLocalDateTime: "LOCALDATETIME",
	TypeZonedDateTime: "ZONEDDATETIME",
	TypeDuration:      "DURATION",
	TypeBooleanArray:  "BOOLEAN_ARRAY",
	TypeShortArray:    "SHORT_ARRAY",
	TypeIntegerArray:  "INTEGER_ARRAY",
	TypeLongArray:     "LONG_ARRAY",
	TypeFloatArray:    "FLOAT_ARRAY",
	TypeDoubleArray:   "DOUBLE_ARRAY",
	TypeStringArray:   "STRING_ARRAY",
}

// AllPropertyTypes lists every supported type in declaration order.
var AllPropertyTypes = []PropertyType{
	TypeBoolean, TypeByte, TypeShort, TypeInteger, TypeLong, TypeFloat, TypeDouble,
	TypeString, TypeBytes, TypeLocalDateTime, TypeZonedDateTime, TypeDuration,
	TypeBooleanArray, TypeShortArray, TypeIntegerArray, TypeLongArray,
	TypeFloatArray, TypeDoubleArray, TypeStringArray,
}

// String returns the stable name used in metadata tables and notifications.
func (t PropertyType) String() string {
	if name, ok := propertyTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// ParsePropertyType is the inverse of String.
func ParsePropertyType(name string) (PropertyType, error) {
	for t, n := range propertyTypeNames {
		if n == name {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown property type %q", name)
}

// Postfixes returns the column-name postfixes of the auxiliary columns.
// The first physical column always carries the bare property name.
func (t PropertyType) Postfixes() []string {
	switch t {
	case TypeZonedDateTime:
		return []string{ZonePostfix}
	case TypeDuration:
		return []string{NanosPostfix}
	default:
		return nil
	}
}

// IsArray reports whether the type is an array of primitives.
func (t PropertyType) IsArray() bool {
	return t >= TypeBooleanArray && t <= TypeStringArray
}

// ColumnNames returns the physical column names for a property.
func ColumnNames(property string, t PropertyType) []string {
	names := []string{property}
	for _, postfix := range t.Postfixes() {
		names = append(names, property+postfix)
	}
	return names
}

// TypeOf returns the PropertyType of a Go value, or TypeUnknown.
func TypeOf(v any) PropertyType {
	switch v.(type) {
	case bool:
		return TypeBoolean
	case int8:
		return TypeByte
	case int16:
		return TypeShort
	case int32:
		return TypeInteger
	case int64, int:
		return TypeLong
	case float32:
		return TypeFloat
	case float64:
		return TypeDouble
	case string:
		return TypeString
	case []byte:
		return TypeBytes
	case LocalDateTime:
		return TypeLocalDateTime
	case time.Time:
		return TypeZonedDateTime
	case time.Duration:
		return TypeDuration
	case []bool:
		return TypeBooleanArray
	case []int16:
		return TypeShortArray
	case []int32:
		return TypeIntegerArray
	case []int64:
		return TypeLongArray
	case []float32:
		return TypeFloatArray
	case []float64:
		return TypeDoubleArray
	case []string:
		return TypeStringArray
	default:
		return TypeUnknown
	}
}

// LocalDateTime is a wall-clock date and time without a zone.
// It is distinct from time.Time, which always stores as ZONEDDATETIME.
type LocalDateTime struct {
	time.Time
}

// LocalDateTimeLayout is the storage layout of LOCALDATETIME values.
const LocalDateTimeLayout = "2006-01-02T15:04:05.999999999"

// NewLocalDateTime drops the zone of t, keeping its wall clock.
func NewLocalDateTime(t time.Time) LocalDateTime {
	return LocalDateTime{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// String formats the value in storage layout.
func (l LocalDateTime) String() string {
	return l.Time.Format(LocalDateTimeLayout)
}
