package probe

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"hretl/internal/table"
)

// distinctCap bounds per-column distinct tracking.
const distinctCap = 100_000

// ColumnProfile is the uniqueness summary of one column.
//
// Rows counts only rows where the column has a value, so a sparse column is
// not reported as "more unique" than it is.
type ColumnProfile struct {
	Column   string
	Type     table.DType
	Rows     int
	Nulls    int
	Distinct int
	Capped   bool
}

// Ratio is Distinct/Rows, or 0 for an empty column.
func (p ColumnProfile) Ratio() float64 {
	if p.Rows == 0 {
		return 0
	}
	return float64(p.Distinct) / float64(p.Rows)
}

// Unique reports whether every row has a distinct, non-missing value, which
// is what a primary key column needs.
func (p ColumnProfile) Unique() bool {
	return p.Nulls == 0 && p.Rows > 0 && !p.Capped && p.Distinct == p.Rows
}

// Profile computes one ColumnProfile per column, in column order.
func Profile(t *table.Table) []ColumnProfile {
	out := make([]ColumnProfile, 0, t.Width())
	for _, c := range t.Columns {
		p := ColumnProfile{Column: c.Name, Type: c.Type}
		seen := make(map[string]struct{})
		for _, v := range c.Values {
			k, ok := table.NormalizeKey(v)
			if !ok {
				p.Nulls++
				continue
			}
			p.Rows++
			if p.Capped {
				continue
			}
			seen[k] = struct{}{}
			if len(seen) >= distinctCap {
				p.Capped = true
				seen = nil
			}
		}
		if p.Capped {
			p.Distinct = distinctCap
		} else {
			p.Distinct = len(seen)
		}
		out = append(out, p)
	}
	return out
}

// KeyCandidates returns the columns that could serve as a primary key, in
// column order.
func KeyCandidates(profiles []ColumnProfile) []string {
	var out []string
	for _, p := range profiles {
		if p.Unique() {
			out = append(out, p.Column)
		}
	}
	return out
}

// WriteReport writes profiles sorted by ascending uniqueness ratio, ties by
// name, skipping columns with no values.
func WriteReport(w io.Writer, profiles []ColumnProfile) error {
	rows := make([]ColumnProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Rows > 0 {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "uniqueness: no values")
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ratio() == rows[j].Ratio() {
			return rows[i].Column < rows[j].Column
		}
		return rows[i].Ratio() < rows[j].Ratio()
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tdtype\tunique\trows\tnulls\tratio\tcapped")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.1f%%\t%t\n",
			r.Column, r.Type, r.Distinct, r.Rows, r.Nulls, r.Ratio()*100, r.Capped)
	}
	return tw.Flush()
}
