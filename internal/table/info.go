package table

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Info writes a per-column summary: position, name, non-null count, dtype.
func (t *Table) Info(w io.Writer) error {
	n := t.Len()
	fmt.Fprintf(w, "table: %s\n", t.Name)
	if n == 0 {
		fmt.Fprintf(w, "RangeIndex: 0 entries\n")
	} else {
		fmt.Fprintf(w, "RangeIndex: %d entries, 0 to %d\n", n, n-1)
	}
	fmt.Fprintf(w, "Data columns (total %d columns):\n", len(t.Columns))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " #\tColumn\tNon-Null Count\tDtype")
	fmt.Fprintln(tw, "---\t------\t--------------\t-----")
	counts := map[DType]int{}
	for i, c := range t.Columns {
		fmt.Fprintf(tw, " %d\t%s\t%d non-null\t%s\n", i, c.Name, n-c.NullCount(), c.Type)
		counts[c.Type]++
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	parts := make([]string, 0, len(counts))
	for _, dt := range []DType{Bool, Category, Float, Int, Text} {
		if counts[dt] > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", dt, counts[dt]))
		}
	}
	_, err := fmt.Fprintf(w, "dtypes: %s\n", strings.Join(parts, ", "))
	return err
}

// Head writes the first n rows as an aligned text grid. Missing values print
// as <NA>.
func (t *Table) Head(w io.Writer, n int) error {
	if n > t.Len() {
		n = t.Len()
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Names(), "\t"))
	for i := 0; i < n; i++ {
		cells := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			if v := c.Values[i]; v == nil {
				cells[j] = "<NA>"
			} else {
				cells[j] = toText(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
