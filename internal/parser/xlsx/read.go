// Package xlsx reads the first (or a named) worksheet of an Office Open XML
// workbook into a table.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"hretl/internal/config"
	"hretl/internal/table"
)

// ReadTable reads one worksheet. The first row is the header; empty cells
// and missing-value tokens (see table.NewNASet) are missing values. Cells are read raw (number formats are not applied),
// so callers run type inference afterwards.
//
// Options:
//   - sheet: worksheet name (default: first sheet in workbook order)
//   - header_map: rename header cells
//   - skip_rows: rows to skip before the header
//   - na_values, keep_default_na: missing-value tokens
func ReadTable(name string, r io.Reader, opt config.Options) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer f.Close()

	sheet := opt.String("sheet", "")
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if skip := opt.Int("skip_rows", 0); skip > 0 {
		if skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[skip:]
		}
	}
	if len(rows) == 0 {
		return table.New(name), nil
	}

	hm := opt.StringMap("header_map")
	na := table.NewNASet(opt.Strings("na_values"), opt.Bool("keep_default_na", true))
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}

	data := make([][]any, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		row := make([]any, len(header))
		for i := 0; i < len(header) && i < len(rec); i++ {
			if !na.Has(rec[i]) {
				row[i] = rec[i]
			}
		}
		data = append(data, row)
	}
	return table.FromRows(name, header, data)
}

func blank(rec []string) bool {
	for _, c := range rec {
		if c != "" {
			return false
		}
	}
	return true
}
