package transformer

import (
	"errors"
	"fmt"
	"io"
	"log"

	"hretl/internal/table"
)

var (
	// ErrConversion marks a column whose values cannot all be converted to
	// the requested dtype.
	ErrConversion = errors.New("conversion failed")

	// ErrColumnNotFound is returned by operations that require the column.
	ErrColumnNotFound = table.ErrColumnNotFound
)

// Logger is the logging seam shared by the cleaning stages.
type Logger interface {
	Printf(format string, v ...any)
}

// DiscardLogger drops everything.
var DiscardLogger Logger = log.New(io.Discard, "", 0)

// ColumnError records why one column was left untouched.
type ColumnError struct {
	Column string
	Err    error
}

// ConvertReport lists what happened to each requested column, in request
// order within each bucket.
type ConvertReport struct {
	Target       table.DType
	Converted    []string
	AlreadyTyped []string
	Missing      []string
	Failed       []ColumnError
}

// OK reports whether no column failed.
func (r ConvertReport) OK() bool { return len(r.Failed) == 0 }

// Err joins every per-column failure, or returns nil.
func (r ConvertReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("column %q: %w", f.Column, f.Err))
	}
	return errors.Join(errs...)
}

// Log prints one diagnostic line per column.
func (r ConvertReport) Log(l Logger) {
	if l == nil {
		return
	}
	for _, c := range r.Converted {
		l.Printf("stage=convert column=%s dtype=%s status=converted", c, r.Target)
	}
	for _, c := range r.AlreadyTyped {
		l.Printf("stage=convert column=%s dtype=%s status=already_typed", c, r.Target)
	}
	for _, c := range r.Missing {
		l.Printf("stage=convert column=%s dtype=%s status=not_found", c, r.Target)
	}
	for _, f := range r.Failed {
		l.Printf("stage=convert column=%s dtype=%s status=failed err=%v", f.Column, r.Target, f.Err)
	}
}

// Convert forces each named column of t to dtype, in place.
//
// A column is replaced only when every value converts; otherwise it is left
// as it was and the failure is recorded. Absent columns are reported, not
// treated as errors. Missing values stay missing.
func Convert(t *table.Table, columns []string, dtype table.DType) ConvertReport {
	rep := ConvertReport{Target: dtype}
	for _, name := range columns {
		col, ok := t.Column(name)
		if !ok {
			rep.Missing = append(rep.Missing, name)
			continue
		}
		if col.Type == dtype {
			rep.AlreadyTyped = append(rep.AlreadyTyped, name)
			continue
		}
		vals, err := convertValues(col.Values, dtype)
		if err != nil {
			rep.Failed = append(rep.Failed, ColumnError{Column: name, Err: err})
			continue
		}
		col.Values = vals
		col.Type = dtype
		rep.Converted = append(rep.Converted, name)
	}
	return rep
}

// ConvertAllExcept converts every column except the listed ones.
func ConvertAllExcept(t *table.Table, except []string, dtype table.DType) ConvertReport {
	skip := make(map[string]struct{}, len(except))
	for _, e := range except {
		skip[e] = struct{}{}
	}
	cols := make([]string, 0, t.Width())
	for _, n := range t.Names() {
		if _, ok := skip[n]; !ok {
			cols = append(cols, n)
		}
	}
	return Convert(t, cols, dtype)
}

func convertValues(in []any, dtype table.DType) ([]any, error) {
	out := make([]any, len(in))
	for i, v := range in {
		cv, err := table.CoerceValue(v, dtype)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrConversion, i, err)
		}
		out[i] = cv
	}
	return out, nil
}
