// Package jsonutil reads and writes the loosely typed JSON documents used by
// the manifest: decoding keeps numbers verbatim, encoding is canonical, and
// typed getters fall back to defaults instead of failing.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Object is a decoded JSON object.
type Object = map[string]any

// ErrNotObject is returned when a document's top level is not an object.
var ErrNotObject = errors.New("json: top level is not an object")

// Decode parses data into an Object, preserving numbers as json.Number.
func Decode(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// Encode renders v in canonical form: sorted keys, two-space indent,
// no HTML escaping and a trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clone deep-copies objects and arrays. Scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneObject deep-copies an object. A nil input yields an empty object.
func CloneObject(m Object) Object {
	if m == nil {
		return Object{}
	}
	return Clone(m).(map[string]any)
}

// ToFloat converts any JSON number representation to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
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
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ToInt converts a JSON number to int, truncating fractions and saturating
// to the int32 range.
func ToInt(v any) (int, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return saturate(float64(i)), true
		}
	}
	f, ok := ToFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return saturate(math.Trunc(f)), true
}

func saturate(f float64) int {
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

// IsNumber reports whether v is a JSON number.
func IsNumber(v any) bool {
	_, ok := ToFloat(v)
	return ok
}

// ToBool accepts booleans, numbers and the strings "true", "1" and "yes".
func ToBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no", "":
			return false, true
		}
		return false, false
	}
	if f, ok := ToFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

// GetObject returns m[key] when it is an object.
func GetObject(m Object, key string) (Object, bool) {
	if m == nil {
		return nil, false
	}
	o, ok := m[key].(map[string]any)
	return o, ok
}

// GetArray returns m[key] when it is an array.
func GetArray(m Object, key string) ([]any, bool) {
	if m == nil {
		return nil, false
	}
	a, ok := m[key].([]any)
	return a, ok
}

// String returns m[key] when it is a string, else def.
func String(m Object, key, def string) string {
	if m == nil {
		return def
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// Int returns m[key] as an int, else def.
func Int(m Object, key string, def int) int {
	if m == nil {
		return def
	}
	if i, ok := ToInt(m[key]); ok {
		return i
	}
	return def
}

// Float returns m[key] as a float64, else def.
func Float(m Object, key string, def float64) float64 {
	if m == nil {
		return def
	}
	if f, ok := ToFloat(m[key]); ok {
		return f
	}
	return def
}

// Bool returns m[key] as a bool, else def.
func Bool(m Object, key string, def bool) bool {
	if m == nil {
		return def
	}
	v, present := m[key]
	if !present {
		return def
	}
	if b, ok := ToBool(v); ok {
		return b
	}
	return def
}

// EnsureObject returns m[key], replacing it with an empty object when it is
// missing or not an object. The second result reports whether m changed.
func EnsureObject(m Object, key string) (Object, bool) {
	if o, ok := m[key].(map[string]any); ok {
		return o, false
	}
	o := Object{}
	m[key] = o
	return o, true
}

// EnsureArray is EnsureObject for arrays.
func EnsureArray(m Object, key string) ([]any, bool) {
	if a, ok := m[key].([]any); ok {
		return a, false
	}
	a := []any{}
	m[key] = a
	return a, true
}

// Strings returns the string elements of m[key], skipping other types.
func Strings(m Object, key string) []string {
	arr, ok := GetArray(m, key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringsToArray converts a []string into a JSON array value.
func StringsToArray(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Integer returns m[key] when it holds an integral number.
func Integer(m Object, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch n := m[key].(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return saturate(float64(i)), true
	case int:
		return n, true
	case int64:
		return saturate(float64(n)), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return saturate(n), true
	}
	return 0, false
}
