package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoerceValue converts one non-missing value to the Go type stored for dt.
// nil passes through unchanged.
//
// Text and Category render numbers the way the analysis tooling prints them
// (3.0 stays "3.0", booleans become "True"/"False"). Int accepts integral
// floats and integer strings; Float accepts ints and numeric strings; Bool
// accepts true/false strings and 0/1.
func CoerceValue(v any, dt DType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dt {
	case Text, Category:
		return toText(v), nil
	case Int:
		return toInt(v)
	case Float:
		return toFloat(v)
	case Bool:
		return toBool(v)
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dt)
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return FormatFloat(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}

// FormatFloat renders f with the shortest round-trip digits and keeps a
// trailing ".0" on integral values.
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func toInt(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case float64:
		return floatToInt(t)
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return floatToInt(f)
		}
		return nil, fmt.Errorf("invalid literal for int64: %q", t)
	default:
		return nil, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// floatToInt rejects fractional values and anything outside [-2^63, 2^63).
// math.MaxInt64 rounds up to 2^63 as a float64, so the upper bound is >=.
func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("cannot convert %v to int64 without loss", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case bool:
		if t {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("could not convert string to float64: %q", t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func toBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		switch t {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case float64:
		switch t {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		if b, ok := ParseBool(t); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to bool", v, v)
}

// ParseBool accepts true/false in any case, ignoring surrounding space.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// TypeOf returns the DType a stored value belongs to, or "" for nil.
func TypeOf(v any) DType {
	switch v.(type) {
	case string:
		return Text
	case int64:
		return Int
	case float64:
		return Float
	case bool:
		return Bool
	default:
		return ""
	}
}
