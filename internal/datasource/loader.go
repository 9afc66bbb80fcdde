package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"hretl/internal/config"
	"hretl/internal/extracthtml"
	"hretl/internal/metrics"
	"hretl/internal/parser/csv"
	"hretl/internal/parser/json"
	"hretl/internal/parser/xlsx"
	"hretl/internal/probe"
	"hretl/internal/storage"
	"hretl/internal/table"
)

// ErrTransport wraps every failure to fetch or parse a dataset.
var ErrTransport = errors.New("transport failure")

// Logger is the logging seam. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

var discard Logger = log.New(io.Discard, "", 0)

// Loader loads datasets from their configured sources.
type Loader struct {
	// Fetcher reads file and html locations. Nil uses a default fetcher.
	Fetcher *Fetcher

	// Sheets serves gsheet sources. Nil makes them fail.
	Sheets SheetsClient

	// SourceDB is the database sql sources are read from.
	SourceDB config.DBConfig

	// OpenRepository opens SourceDB. Nil uses storage.New.
	OpenRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	Logger Logger
}

func (l *Loader) logger() Logger {
	if l.Logger == nil {
		return discard
	}
	return l.Logger
}

// Load reads dataset name from spec. Text columns of the result have been
// through type inference. On failure the table is nil and the error wraps
// ErrTransport or ErrFormatUndetermined.
func (l *Loader) Load(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	start := time.Now()
	t, err := l.load(ctx, name, spec)
	metrics.RecordStep("load", err, time.Since(start))
	if err != nil {
		l.logger().Printf("stage=load dataset=%s kind=%s error: %v", name, spec.Kind, err)
		return nil, err
	}

	inferred := probe.InferTypes(t)
	metrics.RecordRecords("loaded_"+name, t.Len())
	l.logger().Printf("stage=load dataset=%s kind=%s rows=%d cols=%d inferred=%d duration=%s",
		name, spec.Kind, t.Len(), t.Width(), len(inferred), time.Since(start).Truncate(time.Millisecond))
	return t, nil
}

func (l *Loader) load(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	switch spec.Kind {
	case "file":
		return l.loadFile(ctx, name, spec)
	case "html":
		return l.loadHTML(ctx, name, spec)
	case "sql":
		return l.loadSQL(ctx, name, spec)
	case "gsheet":
		return l.loadSheet(ctx, name, spec)
	default:
		return nil, fmt.Errorf("load %s: %w: unknown source kind %q", name, ErrTransport, spec.Kind)
	}
}

func (l *Loader) fetcher() *Fetcher {
	if l.Fetcher == nil {
		return NewFetcher(nil, config.DefaultHTTPTimeout, config.DefaultUserAgent)
	}
	return l.Fetcher
}

func transportErr(name string, err error) error {
	return fmt.Errorf("load %s: %w: %w", name, ErrTransport, err)
}

func (l *Loader) onParseErr(name string) func(line int, err error) {
	return func(line int, err error) {
		l.logger().Printf("stage=load dataset=%s line=%d parse error: %v", name, line, err)
	}
}

func (l *Loader) loadFile(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	format, err := ResolveFormat(spec.Location, spec.Format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	raw, err := l.fetcher().Fetch(ctx, spec.Location)
	if err != nil {
		return nil, transportErr(name, err)
	}

	var t *table.Table
	switch format {
	case Excel:
		t, err = xlsx.ReadTable(name, bytes.NewReader(raw), spec.Options)
	case CSV:
		var text []byte
		if text, err = DecodeText(raw, spec.Options.String("encoding", "")); err == nil {
			t, err = csv.ReadTable(ctx, name, io.NopCloser(bytes.NewReader(text)), spec.Options, l.onParseErr(name))
		}
	case JSON:
		var text []byte
		if text, err = DecodeText(raw, spec.Options.String("encoding", "")); err == nil {
			t, err = json.ReadTable(ctx, name, bytes.NewReader(text), spec.Options, l.onParseErr(name))
		}
	}
	if err != nil {
		return nil, transportErr(name, err)
	}
	return t, nil
}

func (l *Loader) loadHTML(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	raw, err := l.fetcher().Fetch(ctx, spec.Location)
	if err != nil {
		return nil, transportErr(name, err)
	}
	text, err := DecodeText(raw, spec.Options.String("encoding", ""))
	if err != nil {
		return nil, transportErr(name, err)
	}

	opts := config.Options{}
	for k, v := range spec.Options {
		opts[k] = v
	}
	if spec.Selector != "" {
		opts["selector"] = spec.Selector
	}
	t, err := extracthtml.ReadTable(name, bytes.NewReader(text), opts)
	if err != nil {
		return nil, transportErr(name, err)
	}
	return t, nil
}

func (l *Loader) loadSQL(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	dsn, err := l.SourceDB.DSNFor(spec.Database)
	if err != nil {
		return nil, transportErr(name, err)
	}
	open := l.OpenRepository
	if open == nil {
		open = storage.New
	}
	repo, err := open(ctx, storage.Config{Kind: l.SourceDB.Kind, DSN: dsn})
	if err != nil {
		return nil, transportErr(name, fmt.Errorf("open %s database %q: %w", l.SourceDB.Kind, spec.Database, err))
	}
	defer repo.Close()

	t, err := repo.ReadTable(ctx, spec.Table)
	if err != nil {
		return nil, transportErr(name, err)
	}
	t.Name = name
	return t, nil
}

func (l *Loader) loadSheet(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error) {
	if l.Sheets == nil {
		return nil, transportErr(name, errors.New("no google sheets client configured"))
	}
	rng := spec.Range
	if rng == "" {
		rng = DefaultSheetRange
	}
	grid, err := l.Sheets.Values(ctx, spec.SpreadsheetID, rng)
	if err != nil {
		return nil, transportErr(name, err)
	}
	t, err := sheetTable(name, grid, spec.Options)
	if err != nil {
		return nil, transportErr(name, err)
	}
	return t, nil
}
