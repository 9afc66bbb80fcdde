// Package builtin contains the reusable column recoders applied by the
// cleaning recipes.
package builtin

import (
	"fmt"

	"hretl/internal/table"
	"hretl/internal/transformer"
)

// Recoder rewrites one table in place.
type Recoder interface {
	Apply(t *table.Table) error
}

// Sentinel recodes an open-ended textual range column into int64.
//
// Typical configuration:
//
//	{
//	  "kind": "sentinel",
//	  "options": {
//	    "column": "experience",
//	    "tokens": {"<1": 0, ">20": 99},
//	    "missing": -1,
//	    "fill_first": true
//	  }
//	}
//
// Rules:
//   - Tokens match the raw string exactly (no trimming, case-sensitive).
//   - Missing values become Missing. With FillFirst the fill happens before
//     token substitution, otherwise after it. Tokens only match strings, so
//     an integer fill value is never substituted.
//   - Every other value must parse as an integer ("7", 7, 7.0).
//   - Any unparseable value fails the column with transformer.ErrConversion
//     and leaves it untouched.
type Sentinel struct {
	Column    string
	Tokens    map[string]int64
	Missing   int64
	FillFirst bool
}

// Apply recodes s.Column.
func (s Sentinel) Apply(t *table.Table) error {
	col, ok := t.Column(s.Column)
	if !ok {
		return fmt.Errorf("sentinel %s.%s: %w", t.Name, s.Column, transformer.ErrColumnNotFound)
	}
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		rv, err := s.recode(v)
		if err != nil {
			return fmt.Errorf("sentinel %s.%s row %d: %w: %v", t.Name, s.Column, i, transformer.ErrConversion, err)
		}
		out[i] = rv
	}
	col.Values = out
	col.Type = table.Int
	return nil
}

func (s Sentinel) recode(v any) (any, error) {
	if s.FillFirst && v == nil {
		v = s.Missing
	}
	if str, ok := v.(string); ok {
		if n, ok := s.Tokens[str]; ok {
			v = n
		}
	}
	if v == nil {
		v = s.Missing
	}
	return table.CoerceValue(v, table.Int)
}

var _ Recoder = Sentinel{}
