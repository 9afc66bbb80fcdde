// Package probe infers column types for tables parsed from text formats and
// profiles columns for key selection.
package probe

import (
	"strconv"
	"strings"

	"hretl/internal/table"
)

// InferTypes refines every Text column of t whose non-missing values all
// parse as a narrower type, in place, and returns the names it changed.
//
// Precedence: integer, then boolean (true/false only), then float. Columns
// with no values stay Text. Category columns are never touched.
func InferTypes(t *table.Table) []string {
	var changed []string
	for _, c := range t.Columns {
		if c.Type != table.Text {
			continue
		}
		dt := inferColumn(c.Values)
		if dt == table.Text {
			continue
		}
		vals := make([]any, len(c.Values))
		ok := true
		for i, v := range c.Values {
			cv, err := table.CoerceValue(v, dt)
			if err != nil {
				ok = false
				break
			}
			vals[i] = cv
		}
		if !ok {
			continue
		}
		c.Values = vals
		c.Type = dt
		changed = append(changed, c.Name)
	}
	return changed
}

func inferColumn(vals []any) table.DType {
	var seen bool
	allInt, allBool, allFloat := true, true, true

	for _, raw := range vals {
		s, isStr := raw.(string)
		if raw == nil {
			continue
		}
		if !isStr {
			return table.Text
		}
		v := strings.TrimSpace(s)
		if v == "" {
			return table.Text
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allBool {
			if _, ok := table.ParseBool(v); !ok {
				allBool = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if !allInt && !allBool && !allFloat {
			return table.Text
		}
	}

	switch {
	case !seen:
		return table.Text
	case allInt:
		return table.Int
	case allBool:
		return table.Bool
	case allFloat:
		return table.Float
	default:
		return table.Text
	}
}
