// Package jsonutil reads loosely typed values out of decoded JSON.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a decoded config value to a string, handling
// clients that send numbers or booleans where a string is expected.
// Returns empty string for nil.
func FlexibleStringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// FlexibleIntValue converts a decoded config value to an int. It accepts JSON
// numbers, Go ints and numeric strings ("5432"). ok is false when v is absent.
func FlexibleIntValue(v any) (n int, ok bool, err error) {
	switch val := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		if val != float64(int64(val)) {
			return 0, true, fmt.Errorf("not an integer: %g", val)
		}
		return int(val), true, nil
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("not an integer: %s", val)
		}
		return int(i), true, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, true, fmt.Errorf("not an integer: %q", val)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("unsupported type %T", v)
	}
}
