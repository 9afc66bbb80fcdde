package starschema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"hretl/internal/metrics"
	"hretl/internal/storage"
	"hretl/internal/table"
)

// ErrMissingDataset is returned when a table of the star schema is absent.
var ErrMissingDataset = errors.New("dataset missing")

// Logger is the logging seam. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Publisher writes the cleaned datasets and declares their keys.
type Publisher struct {
	Logger Logger

	// Plan overrides the DDL plan. Nil uses Plan().
	Plan []storage.DDLOp
}

// Result summarises a publish run.
type Result struct {
	Rows map[string]int64
	DDL  []storage.DDLOp
}

func (p *Publisher) logger() Logger {
	if p.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return p.Logger
}

func (p *Publisher) plan() []storage.DDLOp {
	if p.Plan == nil {
		return Plan()
	}
	return p.Plan
}

// Publish replaces the six tables in repo, in WriteOrder, then applies the
// DDL plan. The plan is validated before anything is written. Constraint
// failures wrap ErrSchemaConstraintViolation; datasets are not modified.
func (p *Publisher) Publish(ctx context.Context, repo storage.Repository, datasets map[string]*table.Table) (Result, error) {
	start := time.Now()
	res, err := p.publish(ctx, repo, datasets)
	metrics.RecordStep("publish", err, time.Since(start))
	if err != nil {
		p.logger().Printf("stage=publish error: %v", err)
		return res, err
	}
	p.logger().Printf("stage=publish ok tables=%d ddl=%d duration=%s",
		len(res.Rows), len(res.DDL), time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

func (p *Publisher) publish(ctx context.Context, repo storage.Repository, datasets map[string]*table.Table) (Result, error) {
	res := Result{Rows: make(map[string]int64, len(WriteOrder))}

	var missing []string
	for _, name := range WriteOrder {
		if datasets[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("publish: %w: %s", ErrMissingDataset, strings.Join(missing, ", "))
	}

	ops := p.plan()
	if err := ValidatePlan(ops); err != nil {
		return res, fmt.Errorf("publish: %w", err)
	}

	l := p.logger()
	for _, name := range WriteOrder {
		t := datasets[name]
		if t.Name != name {
			t = &table.Table{Name: name, Columns: t.Columns}
		}
		tStart := time.Now()
		n, err := repo.ReplaceTable(ctx, t)
		if err != nil {
			return res, fmt.Errorf("publish %s: %w", name, err)
		}
		res.Rows[name] = n
		metrics.RecordRecords("published_"+name, int(n))
		l.Printf("stage=publish table=%s rows=%d cols=%d duration=%s", name, n, t.Width(), time.Since(tStart).Truncate(time.Millisecond))
	}

	for _, op := range ops {
		l.Printf("stage=publish ddl %s", op)
	}
	if err := repo.ApplyDDL(ctx, ops); err != nil {
		return res, fmt.Errorf("publish: %w: %w", ErrSchemaConstraintViolation, err)
	}
	res.DDL = ops
	return res, nil
}
