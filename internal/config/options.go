package config

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// Options is a loosely typed option bag used by parsers and sources.
//
// Values arrive from JSON (numbers as float64) or YAML (numbers as int), so
// the getters accept both and fall back to the default on anything else.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns a string option.
func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns a boolean option. "true"/"false" strings are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns an integer option.
func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string option, e.g. a CSV delimiter.
// "\t" written literally in config is accepted as a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	if s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// Duration returns a duration option written as "30s" or as seconds.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	switch v := o.Any(key).(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}
	return def
}

// StringMap returns a map[string]string option. Non-string values are skipped.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := o.Any(key).(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Strings returns a []string option.
func (o Options) Strings(key string) []string {
	switch v := o.Any(key).(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}
