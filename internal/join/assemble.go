package join

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"hretl/internal/hr"
	"hretl/internal/metrics"
	"hretl/internal/table"
)

// ErrMissingDataset is returned when an input of the master join is absent.
var ErrMissingDataset = errors.New("dataset missing")

// Logger is the logging seam. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// MasterName names the assembled table.
const MasterName = "master"

// Report lists the join steps in execution order.
type Report struct {
	Steps []Stats
}

// Dropped sums the left rows lost across every step.
func (r Report) Dropped() int {
	n := 0
	for _, s := range r.Steps {
		n += s.LeftUnmatched
	}
	return n
}

// Log prints one line per step.
func (r Report) Log(l Logger) {
	for _, s := range r.Steps {
		l.Printf("stage=join step=%s left=%d right=%d out=%d dropped=%d right_unmatched=%d",
			s.Step, s.Left, s.Right, s.Out, s.LeftUnmatched, s.RightUnmatched)
	}
}

// enrolleeSteps is the join order on enrollee_id.
var enrolleeSteps = []string{hr.TrainingHours, hr.Employment, hr.Education, hr.WorkExperience}

// AssembleMaster joins the cleaned datasets into the analysis table:
// enrollee with training hours, employment, education and work experience on
// enrollee_id, then with the city index on city. The raw company_size column
// is dropped afterwards. The inputs are left untouched.
func AssembleMaster(ctx context.Context, datasets map[string]*table.Table, logger Logger) (*table.Table, Report, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	start := time.Now()
	master, rep, err := assemble(ctx, datasets)
	metrics.RecordStep("join", err, time.Since(start))
	rep.Log(logger)
	for _, s := range rep.Steps {
		metrics.RecordJoinDropped(s.Step, s.LeftUnmatched)
	}
	if err != nil {
		logger.Printf("stage=join error: %v", err)
		return nil, rep, err
	}
	metrics.RecordRecords(MasterName, master.Len())
	logger.Printf("stage=join ok rows=%d cols=%d dropped=%d duration=%s",
		master.Len(), master.Width(), rep.Dropped(), time.Since(start).Truncate(time.Millisecond))
	return master, rep, nil
}

func assemble(ctx context.Context, datasets map[string]*table.Table) (*table.Table, Report, error) {
	var rep Report

	var missing []string
	for _, name := range hr.Datasets {
		if datasets[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, rep, fmt.Errorf("assemble: %w: %s", ErrMissingDataset, strings.Join(missing, ", "))
	}

	master := datasets[hr.Enrollee]
	for _, name := range enrolleeSteps {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		out, st, err := Inner(master, datasets[name], hr.EnrolleeID, hr.EnrolleeID)
		if err != nil {
			return nil, rep, err
		}
		rep.Steps = append(rep.Steps, st)
		master = out
	}

	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}
	city := datasets[hr.CityDevelopmentIndex].Clone()
	if err := city.Rename(hr.CityIndex, hr.City); err != nil {
		return nil, rep, fmt.Errorf("assemble: %w", err)
	}
	out, st, err := Inner(master, city, hr.City, hr.City)
	if err != nil {
		return nil, rep, err
	}
	rep.Steps = append(rep.Steps, st)
	master = out

	if err := master.Drop(hr.CompanySize); err != nil {
		return nil, rep, fmt.Errorf("assemble: %w", err)
	}
	master.Name = MasterName
	return master, rep, nil
}
