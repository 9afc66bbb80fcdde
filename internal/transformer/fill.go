package transformer

import (
	"fmt"

	"hretl/internal/table"
)

// FillMissing replaces every missing value in column with value, in place,
// and returns how many cells were filled.
//
// value is coerced to the column dtype first. Other columns are never
// touched.
func FillMissing(t *table.Table, column string, value any) (int, error) {
	col, ok := t.Column(column)
	if !ok {
		return 0, fmt.Errorf("fill %s.%s: %w", t.Name, column, ErrColumnNotFound)
	}
	fill, err := table.CoerceValue(table.NormalizeScalar(value), col.Type)
	if err != nil {
		return 0, fmt.Errorf("fill %s.%s: %w: %v", t.Name, column, ErrConversion, err)
	}
	if fill == nil {
		return 0, nil
	}
	n := 0
	for i, v := range col.Values {
		if v == nil {
			col.Values[i] = fill
			n++
		}
	}
	return n, nil
}
