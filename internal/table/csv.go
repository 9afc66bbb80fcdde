package table

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes a header row and every row of t. Missing values are
// written as empty fields.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	rec := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j, c := range t.Columns {
			rec[j] = ""
			if v := c.Values[i]; v != nil {
				rec[j] = toText(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
