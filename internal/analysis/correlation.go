// Package analysis computes the correlation matrix and the OLS fit reported
// for the assembled master table.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hretl/internal/table"
)

// CorrMatrix is a Pearson correlation matrix over named columns.
type CorrMatrix struct {
	Names  []string
	Values *mat.SymDense
}

// At returns the correlation of columns i and j.
func (m CorrMatrix) At(i, j int) float64 { return m.Values.At(i, j) }

// Correlation correlates every int64 and float64 column of t. Each pair
// uses the rows where both values are present; pairs with fewer than two
// such rows or a constant side are NaN.
func Correlation(t *table.Table) CorrMatrix {
	var names []string
	var cols [][]any
	for _, c := range t.Columns {
		if c.Type.Numeric() {
			names = append(names, c.Name)
			cols = append(cols, c.Values)
		}
	}

	n := len(names)
	m := CorrMatrix{Names: names}
	if n == 0 {
		return m
	}
	m.Values = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pairCorr(cols[i], cols[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values.SetSym(i, j, r)
		}
	}
	return m
}

func pairCorr(a, b []any) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for k := range a {
		xv, ok1 := asFloat(a[k])
		yv, ok2 := asFloat(b[k])
		if ok1 && ok2 {
			x = append(x, xv)
			y = append(y, yv)
		}
	}
	if len(x) < 2 {
		return math.NaN()
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// WriteText prints the matrix as an aligned grid with two decimals.
func (m CorrMatrix) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for _, n := range m.Names {
		fmt.Fprintf(tw, "%s\t", n)
	}
	fmt.Fprintln(tw)
	for i, n := range m.Names {
		fmt.Fprintf(tw, "%s\t", n)
		for j := range m.Names {
			fmt.Fprintf(tw, "%.2f\t", m.At(i, j))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// WriteCSV writes the matrix with a header row and the column name as the
// first field of each row. NaN is written as an empty field.
func (m CorrMatrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.Names...)); err != nil {
		return err
	}
	for i, n := range m.Names {
		rec := make([]string, 0, len(m.Names)+1)
		rec = append(rec, n)
		for j := range m.Names {
			v := m.At(i, j)
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
