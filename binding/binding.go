// Package binding resolves dotted paths such as "back.sections[0].heading"
// against documents decoded into map[string]any / []any trees.
//
// Every accessor is total: a missing key, an index out of range or a value of
// the wrong kind yields ok == false instead of an error.
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则返回原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		path := strings.TrimSpace(groups[1])
		if path == "" {
			return match
		}
		if val, ok := Lookup(data, path); ok && val != nil {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Lookup returns the value at path. An empty path returns data itself.
func Lookup(data any, path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return data, data != nil
	}
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

// String returns the string at path. Numbers and booleans are not coerced.
func String(data any, path string) (string, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringOr returns the string at path when it is present and non-empty.
func StringOr(data any, path, fallback string) string {
	if s, ok := String(data, path); ok && s != "" {
		return s
	}
	return fallback
}

// Text returns a scalar at path rendered as text: strings as is, numbers
// and booleans formatted. Useful for YAML values such as `weight: 700`.
func Text(data any, path string) (string, bool) {
	v, ok := Lookup(data, path)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
	}
	return "", false
}

// Number returns the number at path. Only numeric kinds qualify; a string
// such as "0.1" is not a number.
func Number(data any, path string) (float64, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Bool returns the boolean at path.
func Bool(data any, path string) (bool, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Truthy mirrors loose truthiness: false, 0, "" and absent values are false.
func Truthy(data any, path string) bool {
	v, ok := Lookup(data, path)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
	}
	return true
}

// List returns the sequence at path.
func List(data any, path string) ([]any, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// Map returns the mapping at path.
func Map(data any, path string) (map[string]any, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func toFloat(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
