package sources

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Option maps come from JSON, TOML and the command line, so numbers may be
// float64, int64, int or strings. The helpers below accept all of them and
// report ok=false when the key is absent.

func optString(opts map[string]any, key string) (string, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case fmt.Stringer:
		return s.String(), true, nil
	}
	return "", false, fmt.Errorf("%w: %s must be a string, got %T", ErrBadOption, key, v)
}

func optBool(opts map[string]any, key string) (bool, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, true, nil
	case string:
		p, err := strconv.ParseBool(b)
		if err != nil {
			return false, false, fmt.Errorf("%w: %s: %v", ErrBadOption, key, err)
		}
		return p, true, nil
	}
	return false, false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrBadOption, key, v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func optFloat(opts map[string]any, key string) (float64, bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("%w: %s must be a number, got %v", ErrBadOption, key, v)
	}
	return f, true, nil
}

func optInt(opts map[string]any, key string) (int, bool, error) {
	f, ok, err := optFloat(opts, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	return int(math.Round(f)), true, nil
}

// optColor accepts [r,g,b] with 0..255 components or a "#rrggbb" string.
func optColor(opts map[string]any, key string) ([3]uint8, bool, error) {
	var c [3]uint8
	v, ok := opts[key]
	if !ok || v == nil {
		return c, false, nil
	}
	var parts []any
	switch t := v.(type) {
	case string:
		parsed, err := ParseHexColor(t)
		if err != nil {
			return c, false, fmt.Errorf("%w: %s: %v", ErrBadOption, key, err)
		}
		return parsed, true, nil
	case []any:
		parts = t
	case []int:
		for _, n := range t {
			parts = append(parts, n)
		}
	case []int64:
		for _, n := range t {
			parts = append(parts, n)
		}
	case []float64:
		for _, n := range t {
			parts = append(parts, n)
		}
	case [3]uint8:
		return t, true, nil
	default:
		return c, false, fmt.Errorf("%w: %s must be [r,g,b] or #rrggbb, got %T", ErrBadOption, key, v)
	}
	if len(parts) < 3 {
		return c, false, fmt.Errorf("%w: %s needs 3 components", ErrBadOption, key)
	}
	for i := 0; i < 3; i++ {
		f, ok := toFloat(parts[i])
		if !ok {
			return c, false, fmt.Errorf("%w: %s[%d] is not a number", ErrBadOption, key, i)
		}
		c[i] = uint8(math.Round(math.Max(0, math.Min(255, f))))
	}
	return c, true, nil
}

// ParseHexColor parses "#rrggbb" or "rrggbb".
func ParseHexColor(s string) ([3]uint8, error) {
	var c [3]uint8
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return c, fmt.Errorf("color %q is not #rrggbb", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return c, fmt.Errorf("color %q: %w", s, err)
	}
	return [3]uint8{uint8(n >> 16), uint8(n >> 8), uint8(n)}, nil
}

// ClampPlaybackRate snaps r to 0.25 steps inside [0.25, 3].
func ClampPlaybackRate(r float64) float64 {
	if math.IsNaN(r) {
		return 1
	}
	r = math.Round(r*4) / 4
	return math.Max(0.25, math.Min(3, r))
}
