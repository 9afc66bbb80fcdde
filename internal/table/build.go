package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FromRows builds a table from a header and positional rows. Short rows are
// padded with missing values; extra cells are ignored.
//
// Column types follow the Go types of the non-missing values (see DetectType).
// Text cells are not parsed here; callers that read text formats run
// probe.InferTypes afterwards.
func FromRows(name string, header []string, rows [][]any) (*Table, error) {
	t := New(name)
	for j, h := range header {
		vals := make([]any, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = normalizeScalar(r[j])
			}
		}
		dt := DetectType(vals)
		if err := conformColumn(vals, dt); err != nil {
			return nil, fmt.Errorf("table %s: column %q: %w", name, h, err)
		}
		if err := t.AddColumn(&Column{Name: h, Type: dt, Values: vals}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DetectType picks the narrowest DType holding every non-missing value.
//
//   - all string           => Text
//   - all int64            => Int
//   - int64 and float64    => Float
//   - all bool             => Bool
//   - anything else mixed  => Text
//   - no values            => Text
func DetectType(vals []any) DType {
	var sawStr, sawInt, sawFloat, sawBool bool
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case string:
			sawStr = true
		case int64:
			sawInt = true
		case float64:
			sawFloat = true
		case bool:
			sawBool = true
		default:
			sawStr = true
		}
	}
	switch {
	case sawStr, sawBool && (sawInt || sawFloat):
		return Text
	case sawFloat:
		return Float
	case sawInt:
		return Int
	case sawBool:
		return Bool
	default:
		return Text
	}
}

// conformColumn rewrites vals in place so every value has the Go type of dt.
func conformColumn(vals []any, dt DType) error {
	for i, v := range vals {
		if v == nil {
			continue
		}
		cv, err := CoerceValue(v, dt)
		if err != nil {
			return err
		}
		vals[i] = cv
	}
	return nil
}

// normalizeScalar maps driver and decoder value types onto the small set a
// Table stores: string, int64, float64, bool.
func normalizeScalar(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, int64, float64, bool:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []byte:
		return string(t)
	case json.Number:
		if n, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeScalar is exported for backends that scan driver values.
func NormalizeScalar(v any) any { return normalizeScalar(v) }

// DedupeNames renames repeated names in place: a, a, a => a, a.1, a.2.
func DedupeNames(cols []string) {
	seen := make(map[string]int, len(cols))
	for _, c := range cols {
		seen[c] = 0
	}
	used := make(map[string]bool, len(cols))
	for i, c := range cols {
		if !used[c] {
			used[c] = true
			continue
		}
		for {
			seen[c]++
			cand := fmt.Sprintf("%s.%d", c, seen[c])
			if _, taken := seen[cand]; !taken && !used[cand] {
				cols[i] = cand
				used[cand] = true
				break
			}
		}
	}
}
