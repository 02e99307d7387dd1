package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/sqlgraph/internal/model"
)

// codec converts between a property value and its physical column values.
// encode returns one value per column of model.ColumnNames; decode receives
// them in the same order.
type codec struct {
	encode func(v any) ([]any, error)
	decode func(vals []any) (any, error)
}

// codecs is the decode table keyed by the topology's PropertyType. Every
// member of model.AllPropertyTypes has an entry.
var codecs = map[model.PropertyType]codec{
	model.TypeBoolean: scalar(func(v any) (any, error) {
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
		return nil, unexpected("BOOLEAN", v)
	}),
	model.TypeByte: integer("BYTE", func(i int64) any { return int8(i) }),
	model.TypeShort: integer("SHORT", func(i int64) any { return int16(i) }),
	model.TypeInteger: integer("INTEGER", func(i int64) any { return int32(i) }),
	model.TypeLong: integer("LONG", func(i int64) any { return i }),
	model.TypeFloat: scalar(func(v any) (any, error) {
		f, err := asFloat("FLOAT", v)
		return float32(f), err
	}),
	model.TypeDouble: scalar(func(v any) (any, error) {
		return asFloat("DOUBLE", v)
	}),
	model.TypeString: scalar(func(v any) (any, error) {
		return asString("STRING", v)
	}),
	model.TypeBytes: scalar(func(v any) (any, error) {
		switch b := v.(type) {
		case []byte:
			return append([]byte(nil), b...), nil
		case string:
			return []byte(b), nil
		}
		return nil, unexpected("BYTES", v)
	}),
	model.TypeLocalDateTime: {
		encode: func(v any) ([]any, error) {
			return []any{v.(model.LocalDateTime).Format(model.LocalDateTimeLayout)}, nil
		},
		decode: func(vals []any) (any, error) {
			s, err := asString("LOCALDATETIME", vals[0])
			if err != nil {
				return nil, err
			}
			t, err := time.ParseInLocation(model.LocalDateTimeLayout, s, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("decode LOCALDATETIME: %w", err)
			}
			return model.LocalDateTime{Time: t}, nil
		},
	},
	model.TypeZonedDateTime: {
		encode: func(v any) ([]any, error) {
			t := v.(time.Time)
			return []any{t.Format(time.RFC3339Nano), t.Location().String()}, nil
		},
		decode: decodeZoned,
	},
	model.TypeDuration: {
		encode: func(v any) ([]any, error) {
			d := v.(time.Duration)
			return []any{int64(d / time.Second), int64(d % time.Second)}, nil
		},
		decode: func(vals []any) (any, error) {
			secs, err := asInt("DURATION", vals[0])
			if err != nil {
				return nil, err
			}
			var nanos int64
			if len(vals) > 1 && vals[1] != nil {
				if nanos, err = asInt("DURATION", vals[1]); err != nil {
					return nil, err
				}
			}
			return time.Duration(secs)*time.Second + time.Duration(nanos), nil
		},
	},
	model.TypeBooleanArray: jsonArray[bool]("BOOLEAN_ARRAY"),
	model.TypeShortArray: jsonArray[int16]("SHORT_ARRAY"),
	model.TypeIntegerArray: jsonArray[int32]("INTEGER_ARRAY"),
	model.TypeLongArray: jsonArray[int64]("LONG_ARRAY"),
	model.TypeFloatArray: jsonArray[float32]("FLOAT_ARRAY"),
	model.TypeDoubleArray: jsonArray[float64]("DOUBLE_ARRAY"),
	model.TypeStringArray: jsonArray[string]("STRING_ARRAY"),
}

// encodeProperty returns the column names and values of one property.
func encodeProperty(name string, v any) ([]string, []any, error) {
	pt := model.TypeOf(v)
	c, ok := codecs[pt]
	if !ok {
		return nil, nil, model.NewValidationError("encode property", fmt.Sprintf("property %q has unsupported type %T", name, v))
	}
	vals, err := c.encode(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode property %q: %w", name, err)
	}
	return model.ColumnNames(name, pt), vals, nil
}

// decodeProperty decodes the column values of one property. A NULL main
// column means the property is absent and returns ok=false.
func decodeProperty(pt model.PropertyType, vals []any) (v any, ok bool, err error) {
	if len(vals) == 0 || vals[0] == nil {
		return nil, false, nil
	}
	c, found := codecs[pt]
	if !found {
		return nil, false, fmt.Errorf("no codec for %s", pt)
	}
	v, err = c.decode(vals)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// fallbackType maps a declared SQL column type to a PropertyType. It is only
// used for columns the topology does not know yet.
func fallbackType(declType string) model.PropertyType {
	switch strings.ToUpper(declType) {
	case "BOOLEAN":
		return model.TypeBoolean
	case "TINYINT":
		return model.TypeByte
	case "SMALLINT":
		return model.TypeShort
	case "INTEGER":
		return model.TypeInteger
	case "BIGINT":
		return model.TypeLong
	case "REAL":
		return model.TypeFloat
	case "DOUBLE":
		return model.TypeDouble
	case "BLOB":
		return model.TypeBytes
	default:
		return model.TypeString
	}
}

func scalar(decode func(v any) (any, error)) codec {
	return codec{
		encode: func(v any) ([]any, error) {
			switch n := v.(type) {
			case int8:
				return []any{int64(n)}, nil
			case int16:
				return []any{int64(n)}, nil
			case int32:
				return []any{int64(n)}, nil
			case int:
				return []any{int64(n)}, nil
			case float32:
				return []any{float64(n)}, nil
			}
			return []any{v}, nil
		},
		decode: func(vals []any) (any, error) { return decode(vals[0]) },
	}
}

func integer(name string, conv func(int64) any) codec {
	return scalar(func(v any) (any, error) {
		i, err := asInt(name, v)
		if err != nil {
			return nil, err
		}
		return conv(i), nil
	})
}

// jsonArray stores arrays as JSON text, for engines without array columns.
func jsonArray[T any](name string) codec {
	return codec{
		encode: func(v any) ([]any, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return []any{string(data)}, nil
		},
		decode: func(vals []any) (any, error) {
			s, err := asString(name, vals[0])
			if err != nil {
				return nil, err
			}
			out := []T{}
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			return out, nil
		},
	}
}

func decodeZoned(vals []any) (any, error) {
	s, err := asString("ZONEDDATETIME", vals[0])
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("decode ZONEDDATETIME: %w", err)
	}
	if len(vals) < 2 || vals[1] == nil {
		return t, nil
	}
	zone, err := asString("ZONEDDATETIME", vals[1])
	if err != nil {
		return nil, err
	}
	// An unnamed fixed zone is fully described by the stored offset.
	if zone == "" {
		return t, nil
	}
	if loc, err := time.LoadLocation(zone); err == nil {
		return t.In(loc), nil
	}
	// Not a tz database name: keep the stored offset under the original name.
	_, offset := t.Zone()
	return t.In(time.FixedZone(zone, offset)), nil
}

func asInt(name string, v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(n), nil
	}
	return 0, unexpected(name, v)
}

func asFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	}
	return 0, unexpected(name, v)
}

func asString(name string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", unexpected(name, v)
}

func unexpected(name string, v any) error {
	return fmt.Errorf("decode %s: unexpected column value %T", name, v)
}
