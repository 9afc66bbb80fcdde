// Package pipeline wires the stages together: load every dataset, clean
// it, then either assemble and analyse the master table or publish the
// star schema.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"hretl/internal/analysis"
	"hretl/internal/cleaning"
	"hretl/internal/config"
	"hretl/internal/datasource"
	"hretl/internal/hr"
	"hretl/internal/join"
	"hretl/internal/starschema"
	"hretl/internal/storage"
	"hretl/internal/table"
)

// ErrDatasetUnavailable is returned when a path needs a dataset that did not
// load or clean.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// Logger is the logging seam. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// DatasetLoader loads one configured dataset.
type DatasetLoader interface {
	Load(ctx context.Context, name string, spec config.SourceSpec) (*table.Table, error)
}

// Datasets maps dataset name to its table.
type Datasets map[string]*table.Table

// Require returns ErrDatasetUnavailable naming every absent dataset.
func (d Datasets) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if d[n] == nil {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrDatasetUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

// Runner executes the pipeline for one configuration.
type Runner struct {
	Config config.Config
	Loader DatasetLoader

	// OpenRepository opens the sink. Nil uses storage.New.
	OpenRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	Logger Logger

	// Info, when set, receives column summaries during cleaning.
	Info io.Writer

	RunID string
}

// New builds a Runner with the default loader for cfg. A Google Sheets
// client is created only when a gsheet source is configured.
func New(ctx context.Context, cfg config.Config, logger Logger) (*Runner, error) {
	timeout := cfg.Runtime.HTTPTimeout.D()
	loader := &datasource.Loader{
		Fetcher:  datasource.NewFetcher(&http.Client{Timeout: timeout}, timeout, cfg.Runtime.UserAgent),
		SourceDB: cfg.SourceDB,
		Logger:   logger,
	}
	for _, s := range cfg.Sources {
		if s.Kind != "gsheet" {
			continue
		}
		sc, err := datasource.NewSheetsClient(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		loader.Sheets = sc
		break
	}
	return &Runner{
		Config: cfg,
		Loader: loader,
		Logger: logger,
		RunID:  uuid.NewString(),
	}, nil
}

func (r *Runner) logger() Logger { return orDiscard(r.Logger) }

func orDiscard(l Logger) Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}

// Load loads every dataset in hr.Datasets. A failed dataset is left out of
// the result and its error joined into the returned error; the remaining
// datasets are still loaded.
func (r *Runner) Load(ctx context.Context) (Datasets, error) {
	out := make(Datasets, len(hr.Datasets))
	var errs []error
	for _, name := range hr.Datasets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		spec, ok := r.Config.Sources[name]
		if !ok {
			errs = append(errs, fmt.Errorf("load %s: %w: no source configured", name, ErrDatasetUnavailable))
			continue
		}
		t, err := r.Loader.Load(ctx, name, spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Name = name
		out[name] = t
	}
	return out, errors.Join(errs...)
}

// Prepare loads and cleans every dataset. A dataset whose cleaning recipe
// fails is dropped like one that failed to load.
func (r *Runner) Prepare(ctx context.Context) (Datasets, error) {
	start := time.Now()
	ds, loadErr := r.Load(ctx)
	if ctx.Err() != nil {
		return ds, ctx.Err()
	}

	errs := []error{loadErr}
	c := cleaning.Cleaner{Logger: r.Logger, Info: r.Info}
	for _, name := range hr.Datasets {
		t := ds[name]
		if t == nil {
			continue
		}
		if err := c.Clean(t); err != nil {
			delete(ds, name)
			errs = append(errs, fmt.Errorf("clean %s: %w", name, err))
		}
	}
	r.logger().Printf("stage=prepare datasets=%d/%d duration=%s", len(ds), len(hr.Datasets), time.Since(start).Truncate(time.Millisecond))
	return ds, errors.Join(errs...)
}

// Analyze assembles the master table from ds and runs the regression.
func (r *Runner) Analyze(ctx context.Context, ds Datasets) (*analysis.Report, join.Report, error) {
	if err := ds.Require(hr.Datasets...); err != nil {
		return nil, join.Report{}, fmt.Errorf("analyze: %w", err)
	}
	master, jrep, err := join.AssembleMaster(ctx, ds, r.Logger)
	if err != nil {
		return nil, jrep, err
	}
	a := r.Config.Analysis
	rep, err := analysis.Run(ctx, master, analysis.Options{
		Target:   a.Target,
		Exclude:  a.Exclude,
		TestSize: a.TestSize,
		Seed:     a.Seed,
	}, r.Logger)
	return rep, jrep, err
}

// Publish writes ds to the configured sink as a star schema.
func (r *Runner) Publish(ctx context.Context, ds Datasets) (starschema.Result, error) {
	if err := ds.Require(starschema.WriteOrder...); err != nil {
		return starschema.Result{}, fmt.Errorf("publish: %w", err)
	}
	dsn, err := r.Config.Sink.DSNFor("")
	if err != nil {
		return starschema.Result{}, fmt.Errorf("publish: sink: %w", err)
	}
	open := r.OpenRepository
	if open == nil {
		open = storage.New
	}
	repo, err := open(ctx, storage.Config{Kind: r.Config.Sink.Kind, DSN: dsn, BatchSize: r.Config.Runtime.InsertBatchSize})
	if err != nil {
		return starschema.Result{}, fmt.Errorf("publish: open %s sink: %w", r.Config.Sink.Kind, err)
	}
	defer repo.Close()

	return (&starschema.Publisher{Logger: r.Logger}).Publish(ctx, repo, ds)
}
