package model

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ConvertValue converts a loosely typed value, as decoded from YAML, JSON or
// a command-line flag, to the Go type of pt. Strings are parsed; lists may be
// given as []any or as a comma-separated string.
func ConvertValue(pt PropertyType, v any) (any, error) {
	if v == nil {
		return nil, NewValidationError("convert value", "value can not be null")
	}
	if _, isInt := v.(int); !isInt && TypeOf(v) == pt {
		return v, nil
	}
	if pt.IsArray() {
		return convertArray(pt, v)
	}
	out, err := convertScalar(pt, v)
	if err != nil {
		return nil, NewValidationError("convert value", fmt.Sprintf("%v is not a valid %s: %v", v, pt, err))
	}
	return out, nil
}

// InferValue maps an untyped decoded value to its natural property value:
// integers become LONG, floats DOUBLE, and homogeneous lists the matching
// array type. Strings stay strings.
func InferValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case []any:
		if len(x) == 0 {
			return []string{}, nil
		}
		elem, err := InferValue(x[0])
		if err != nil {
			return nil, err
		}
		switch elem.(type) {
		case bool:
			return ConvertValue(TypeBooleanArray, x)
		case int64:
			return ConvertValue(TypeLongArray, x)
		case float64:
			return ConvertValue(TypeDoubleArray, x)
		case string:
			return ConvertValue(TypeStringArray, x)
		}
		return nil, NewValidationError("infer value", fmt.Sprintf("unsupported list element %T", x[0]))
	}
	if TypeOf(v) == TypeUnknown {
		return nil, NewValidationError("infer value", fmt.Sprintf("unsupported value type %T", v))
	}
	return v, nil
}

// FormatValue renders a property value as text, in the form ConvertValue
// parses back for the same type.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano) + "[" + x.Location().String() + "]"
	case time.Duration:
		return x.String()
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []string:
		return "[" + strings.Join(x, ",") + "]"
	case []bool, []int16, []int32, []int64, []float32, []float64:
		return strings.ReplaceAll(fmt.Sprint(x), " ", ",")
	default:
		return fmt.Sprint(v)
	}
}

func convertScalar(pt PropertyType, v any) (any, error) {
	switch pt {
	case TypeBoolean:
		switch x := v.(type) {
		case string:
			return strconv.ParseBool(x)
		}
	case TypeByte, TypeShort, TypeInteger, TypeLong:
		i, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return narrow(pt, i)
	case TypeFloat, TypeDouble:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if pt == TypeFloat {
			return float32(f), nil
		}
		return f, nil
	case TypeString:
		switch x := v.(type) {
		case int, int64, float64, bool:
			return fmt.Sprint(x), nil
		}
	case TypeBytes:
		if s, ok := v.(string); ok {
			return base64.StdEncoding.DecodeString(s)
		}
	case TypeLocalDateTime:
		if s, ok := v.(string); ok {
			t, err := time.Parse(LocalDateTimeLayout, s)
			if err != nil {
				return nil, err
			}
			return LocalDateTime{Time: t}, nil
		}
		if t, ok := v.(time.Time); ok {
			return NewLocalDateTime(t), nil
		}
	case TypeZonedDateTime:
		if s, ok := v.(string); ok {
			return parseZoned(s)
		}
	case TypeDuration:
		switch x := v.(type) {
		case string:
			return time.ParseDuration(x)
		case int:
			return time.Duration(x), nil
		case int64:
			return time.Duration(x), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T", v)
}

func convertArray(pt PropertyType, v any) (any, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case string:
		x = strings.TrimSuffix(strings.TrimPrefix(x, "["), "]")
		if x != "" {
			for _, s := range strings.Split(x, ",") {
				items = append(items, strings.TrimSpace(s))
			}
		}
	default:
		return nil, NewValidationError("convert value", fmt.Sprintf("%T is not a valid %s", v, pt))
	}

	elem := elementType(pt)
	conv := make([]any, len(items))
	for i, item := range items {
		c, err := ConvertValue(elem, item)
		if err != nil {
			return nil, err
		}
		conv[i] = c
	}
	switch pt {
	case TypeBooleanArray:
		return collect[bool](conv), nil
	case TypeShortArray:
		return collect[int16](conv), nil
	case TypeIntegerArray:
		return collect[int32](conv), nil
	case TypeLongArray:
		return collect[int64](conv), nil
	case TypeFloatArray:
		return collect[float32](conv), nil
	case TypeDoubleArray:
		return collect[float64](conv), nil
	default:
		return collect[string](conv), nil
	}
}

func elementType(pt PropertyType) PropertyType {
	switch pt {
	case TypeBooleanArray:
		return TypeBoolean
	case TypeShortArray:
		return TypeShort
	case TypeIntegerArray:
		return TypeInteger
	case TypeLongArray:
		return TypeLong
	case TypeFloatArray:
		return TypeFloat
	case TypeDoubleArray:
		return TypeDouble
	default:
		return TypeString
	}
}

func collect[T any](items []any) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.(T)
	}
	return out
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v has a fraction", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func narrow(pt PropertyType, i int64) (any, error) {
	switch pt {
	case TypeByte:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return nil, fmt.Errorf("%d overflows BYTE", i)
		}
		return int8(i), nil
	case TypeShort:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, fmt.Errorf("%d overflows SHORT", i)
		}
		return int16(i), nil
	case TypeInteger:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows INTEGER", i)
		}
		return int32(i), nil
	}
	return i, nil
}

// parseZoned accepts RFC 3339, optionally followed by a bracketed IANA zone
// name as FormatValue writes it.
func parseZoned(s string) (time.Time, error) {
	var zone string
	if i := strings.IndexByte(s, '['); i > 0 && strings.HasSuffix(s, "]") {
		s, zone = s[:i], s[i+1:len(s)-1]
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || zone == "" {
		return t, err
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
