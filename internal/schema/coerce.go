package schema

import (
	"fmt"
	"math"
	"strconv"
)

// Coerce converts an input value to the representation stored for t. YAML
// and JSON decoders pick their own numeric types, so an ID written as 42 and
// one written as "42" both become "42". A nil value passes through.
func (t ValueType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case ValueID:
		switch val := v.(type) {
		case string:
			return val, nil
		case float32, float64:
			if i, ok := integral(val); ok {
				return strconv.FormatInt(i, 10), nil
			}
		default:
			if s, ok := formatInteger(v); ok {
				return s, nil
			}
		}
	case ValueString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ValueInt:
		switch val := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return val, nil
		case float32, float64:
			if i, ok := integral(val); ok {
				return i, nil
			}
		}
	case ValueFloat:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case ValueBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

func integral(v any) (int64, bool) {
	var f float64
	switch val := v.(type) {
	case float32:
		f = float64(val)
	case float64:
		f = val
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func formatInteger(v any) (string, bool) {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	}
	return "", false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}
