package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// queryInt64 parses an optional positive id parameter.
func queryInt64(q url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &v, nil
}

// requireInt64 parses a mandatory positive id parameter.
func requireInt64(q url.Values, key string) (int64, error) {
	v, err := queryInt64(q, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("missing %s", key)
	}
	return *v, nil
}

// queryInt parses an optional non-negative integer, returning def when absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

// queryGrade parses the optional grade filter.
func queryGrade(q url.Values) (*int, error) {
	raw := strings.TrimSpace(q.Get("grade"))
	if raw == "" {
		return nil, nil
	}
	g, err := strconv.Atoi(raw)
	if err != nil || g < 9 || g > 12 {
		return nil, fmt.Errorf("invalid grade %q", raw)
	}
	return &g, nil
}

// pathID extracts the numeric id following prefix.
func pathID(path, prefix string) (int64, error) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("invalid path %q", path)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", rest)
	}
	return id, nil
}
