package common

import (
	"fmt"
	"math"
	"strings"
)

// StringArg returns the trimmed string argument key, or "".
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// OptionalStringArg returns a pointer to the string argument key, or nil when
// it was not given. An empty string is returned as a pointer to "" so
// callers can clear a field.
func OptionalStringArg(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// StringListArg reads key as either a JSON array of strings or a single
// comma-separated string. Blank entries are dropped. A missing key yields nil.
func StringListArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a list of strings", key)
			}
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or a list of strings", key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// IntArg reads a whole-number argument. ok is false when the key is absent.
func IntArg(args map[string]any, key string) (n int, ok bool, err error) {
	raw, present := args[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be a whole number, got %v", key, v)
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, true, fmt.Errorf("%s is out of range, got %v", key, v)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
}

// BoolArg returns the boolean argument key, or false.
func BoolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
