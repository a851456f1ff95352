package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jaakkos/promptbox/internal/domain"
)

// maxExactFloat is the largest integer a JSON number can carry without losing precision.
const maxExactFloat = 1 << 53

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// optionalString extracts a string from args by key, returning the fallback if not present.
func optionalString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// optionalBool extracts a bool from args by key; anything else is false.
func optionalBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// parseRoleID accepts a decimal string or an integral JSON number. Snowflake ids
// exceed float64 precision, so callers should send them as strings.
func parseRoleID(v any) (int64, error) {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("role id %q is not an integer", id)
		}
		return n, nil
	case float64:
		if id != math.Trunc(id) || math.Abs(id) > maxExactFloat {
			return 0, fmt.Errorf("role id %v must be an integer; send large ids as strings", id)
		}
		return int64(id), nil
	case nil:
		return 0, fmt.Errorf("role id is required")
	default:
		return 0, fmt.Errorf("role id must be a string or number, got %T", v)
	}
}

// requireRoleID extracts one role id from args by key.
func requireRoleID(args map[string]any, key string) (int64, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	id, err := parseRoleID(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return id, nil
}

// roleIDs extracts the acting user's role ids. A missing key means no roles.
func roleIDs(args map[string]any, key string) ([]int64, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array, got %T", key, v)
	}
	ids := make([]int64, 0, len(items))
	for i, item := range items {
		id, err := parseRoleID(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalCategory returns nil when key is absent or blank. ok is false when a
// value was given that is not a category.
func optionalCategory(args map[string]any, key string) (c *domain.Category, ok bool) {
	raw, _ := args[key].(string)
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	parsed, err := domain.ParseCategory(raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
