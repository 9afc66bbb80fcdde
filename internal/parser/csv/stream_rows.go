// Package csv reads delimited text into tables.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"hretl/internal/config"
	"hretl/internal/table"
	"hretl/internal/transformer"
	"hretl/internal/transformer/builtin"
)

// StreamCSVRows streams records from src into pooled *transformer.Row
// values, one per record, aligned to the header order.
//
// onHeader receives the resolved column names before the first row is sent.
// Header cells are trimmed, a leading BOM is dropped and header_map renames
// are applied. With normalize_headers the remaining names are lower-cased and
// spaces become underscores. Without a header row, columns are named
// "column_1", "column_2", ... after the width of the first record.
//
// Cells listed in na_values, and the table.DefaultNAValues tokens unless
// keep_default_na is false, are missing values. Empty cells always are.
// Cells are trimmed only with trim_space, before the missing-value check.
//
// On ctx cancellation an in-flight row is dropped, never re-pooled.
func StreamCSVRows(
	ctx context.Context,
	src io.ReadCloser,
	opt config.Options,
	onHeader func(columns []string),
	out chan<- *transformer.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", false)
	normalize := opt.Bool("normalize_headers", false)
	hm := opt.StringMap("header_map")
	na := table.NewNASet(opt.Strings("na_values"), opt.Bool("keep_default_na", true))

	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.Comment = opt.Rune("comment", 0)
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if n := opt.Int("fields_per_record", 0); n != 0 {
		cr.FieldsPerRecord = n
	} else {
		cr.FieldsPerRecord = -1
	}

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	var width int
	var pending []string
	if hasHeader {
		hdr, err := readRec()
		if err != nil {
			if errors.Is(err, io.EOF) {
				onHeader(nil)
				return nil
			}
			if onErr != nil {
				onErr(line, fmt.Errorf("read header: %w", err))
			}
			return fmt.Errorf("csv: read header: %w", err)
		}
		cols := make([]string, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if builtin.HasEdgeSpace(h) {
				h = strings.TrimSpace(h)
			}
			if mapped, ok := hm[h]; ok {
				h = mapped
			} else if normalize {
				h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
			}
			if h == "" {
				h = fmt.Sprintf("column_%d", i+1)
			}
			cols[i] = h
		}
		table.DedupeNames(cols)
		width = len(cols)
		onHeader(cols)
	} else {
		first, err := readRec()
		if errors.Is(err, io.EOF) {
			onHeader(nil)
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv: read first record: %w", err)
		}
		width = len(first)
		cols := make([]string, width)
		for i := range cols {
			cols[i] = fmt.Sprintf("column_%d", i+1)
		}
		onHeader(cols)
		pending = append([]string(nil), first...)
	}

	emit := func(rec []string) error {
		row := transformer.GetRow(width)
		row.Line = line
		for i := 0; i < width && i < len(rec); i++ {
			v := rec[i]
			if i == 0 && line == 1 {
				v = strings.TrimPrefix(v, "\uFEFF")
			}
			if trim && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if !na.Has(v) {
				row.V[i] = v
			}
		}
		select {
		case out <- row:
			return nil
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}

	if pending != nil {
		if err := emit(pending); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

// ReadTable parses src into a table named name. Cell values are kept as
// text; callers run type inference afterwards.
func ReadTable(ctx context.Context, name string, src io.ReadCloser, opt config.Options, onErr func(line int, err error)) (*table.Table, error) {
	out := make(chan *transformer.Row, 256)
	hdrCh := make(chan []string, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		errCh <- StreamCSVRows(ctx, src, opt, func(cols []string) { hdrCh <- cols }, out, onErr)
	}()

	var rows [][]any
	for r := range out {
		rows = append(rows, append([]any(nil), r.V...))
		r.Free()
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	var header []string
	select {
	case header = <-hdrCh:
	default:
	}
	return table.FromRows(name, header, rows)
}
