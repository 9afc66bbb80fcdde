package analysis

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"hretl/internal/table"
)

// ConstName names the intercept column of a design matrix.
const ConstName = "const"

var (
	// ErrTarget is returned when the target column is absent, not numeric or
	// has missing values.
	ErrTarget = errors.New("invalid regression target")

	// ErrNoObservations is returned when no usable rows remain.
	ErrNoObservations = errors.New("no observations")
)

// Design is a regression design matrix with its response.
type Design struct {
	Names []string
	X     *mat.Dense
	Y     []float64

	// Rows maps design rows back to rows of the source table.
	Rows []int

	// DroppedRows counts source rows skipped for a missing numeric regressor.
	DroppedRows int
}

// BuildDesign encodes t for a regression of target on every other column
// except those in exclude.
//
// The first column is a constant. Numeric and bool columns are used as they
// are. Text and category columns are dummy encoded: one indicator per level
// in sorted order, the first level dropped, a missing value giving all
// zeros.
func BuildDesign(t *table.Table, target string, exclude []string) (Design, error) {
	tc, ok := t.Column(target)
	if !ok {
		return Design{}, fmt.Errorf("%w: column %q not found", ErrTarget, target)
	}
	if !tc.Type.Numeric() && tc.Type != table.Bool {
		return Design{}, fmt.Errorf("%w: column %q is %s", ErrTarget, target, tc.Type)
	}
	if n := tc.NullCount(); n > 0 {
		return Design{}, fmt.Errorf("%w: column %q has %d missing values", ErrTarget, target, n)
	}

	type encoded struct {
		name string
		col  *table.Column
		// level is set for dummy columns.
		level *string
	}
	var enc []encoded
	for _, c := range t.Columns {
		if c.Name == target || slices.Contains(exclude, c.Name) {
			continue
		}
		switch c.Type {
		case table.Int, table.Float, table.Bool:
			enc = append(enc, encoded{name: c.Name, col: c})
		default:
			levels := levelsOf(c)
			for _, lv := range levels[min(1, len(levels)):] {
				enc = append(enc, encoded{name: c.Name + "_" + lv, col: c, level: &lv})
			}
		}
	}

	var rows []int
	dropped := 0
	for i := 0; i < t.Len(); i++ {
		usable := true
		for _, e := range enc {
			if e.level == nil && e.col.Values[i] == nil {
				usable = false
				break
			}
		}
		if !usable {
			dropped++
			continue
		}
		rows = append(rows, i)
	}
	if len(rows) == 0 {
		return Design{}, fmt.Errorf("%w: every row has a missing regressor", ErrNoObservations)
	}

	names := make([]string, 0, len(enc)+1)
	names = append(names, ConstName)
	for _, e := range enc {
		names = append(names, e.name)
	}

	x := mat.NewDense(len(rows), len(names), nil)
	y := make([]float64, len(rows))
	for r, i := range rows {
		x.Set(r, 0, 1)
		for j, e := range enc {
			v := e.col.Values[i]
			if e.level != nil {
				if s, ok := levelOf(v); ok && s == *e.level {
					x.Set(r, j+1, 1)
				}
				continue
			}
			f, _ := asFloat(v)
			x.Set(r, j+1, f)
		}
		y[r], _ = asFloat(tc.Values[i])
	}
	return Design{Names: names, X: x, Y: y, Rows: rows, DroppedRows: dropped}, nil
}

func levelOf(v any) (string, bool) { return table.NormalizeKey(v) }

func levelsOf(c *table.Column) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range c.Values {
		s, ok := levelOf(v)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Subset returns the design restricted to the given design rows.
func (d Design) Subset(idx []int) Design {
	_, p := d.X.Dims()
	x := mat.NewDense(len(idx), p, nil)
	y := make([]float64, len(idx))
	rows := make([]int, len(idx))
	for r, i := range idx {
		x.SetRow(r, d.X.RawRowView(i))
		y[r] = d.Y[i]
		rows[r] = d.Rows[i]
	}
	return Design{Names: d.Names, X: x, Y: y, Rows: rows}
}
