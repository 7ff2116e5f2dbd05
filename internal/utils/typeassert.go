// Package utils provides lenient value coercion shared by the co2twin
// loaders and the simulation facade.
package utils

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Float64 converts v to a float64. It accepts every Go numeric kind,
// json.Number, numeric strings (surrounding whitespace ignored) and bools
// (true = 1, false = 0). The second result is false when v cannot be read
// as a number.
func Float64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFloat64 is Float64 with malformed input mapped to 0.
func ToFloat64(v interface{}) float64 {
	f, _ := Float64(v)
	return f
}

// GetFloat64 safely extracts a number from a map, returning defaultVal if
// the key is missing or the value is not numeric.
func GetFloat64(m map[string]interface{}, key string, defaultVal float64) float64 {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if f, ok := Float64(v); ok {
		return f
	}
	return defaultVal
}
