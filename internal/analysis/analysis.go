package analysis

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"text/tabwriter"
	"time"

	"hretl/internal/metrics"
	"hretl/internal/table"
)

// Logger is the logging seam. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures Run.
type Options struct {
	Target   string
	Exclude  []string
	TestSize float64
	Seed     uint64
}

// Report is the outcome of Run.
type Report struct {
	Correlation CorrMatrix
	Fit         *OLSResult

	Target      string
	Rows        int
	DroppedRows int
	Train       int
	Test        int
	TestR2      float64
}

// Run correlates the numeric columns of master and fits the target on a
// seeded training split. The held-out R² is computed on the remaining rows.
func Run(ctx context.Context, master *table.Table, opt Options, logger Logger) (*Report, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	start := time.Now()
	rep, err := run(ctx, master, opt)
	metrics.RecordStep("analyze", err, time.Since(start))
	if err != nil {
		logger.Printf("stage=analyze error: %v", err)
		return nil, err
	}
	logger.Printf("stage=analyze ok rows=%d dropped=%d train=%d test=%d params=%d rank=%d r2=%.4f test_r2=%.4f duration=%s",
		rep.Rows, rep.DroppedRows, rep.Train, rep.Test, len(rep.Fit.Coefficients), rep.Fit.Rank,
		rep.Fit.RSquared, rep.TestR2, time.Since(start).Truncate(time.Millisecond))
	return rep, nil
}

func run(ctx context.Context, master *table.Table, opt Options) (*Report, error) {
	rep := &Report{Target: opt.Target, Rows: master.Len()}
	rep.Correlation = Correlation(master)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := BuildDesign(master, opt.Target, opt.Exclude)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	rep.DroppedRows = d.DroppedRows

	trainIdx, testIdx := Split(len(d.Y), opt.TestSize, opt.Seed)
	if len(trainIdx) == 0 {
		return nil, fmt.Errorf("analyze: %w: empty training split", ErrNoObservations)
	}
	train := d.Subset(trainIdx)
	rep.Train, rep.Test = len(trainIdx), len(testIdx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fit, err := FitOLS(train.X, train.Y, train.Names)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	rep.Fit = fit

	rep.TestR2 = math.NaN()
	if len(testIdx) > 0 {
		test := d.Subset(testIdx)
		rep.TestR2 = RSquared(test.Y, fit.Predict(test.X))
	}
	return rep, nil
}

// WriteSummary prints the correlation matrix and a regression table.
func (r *Report) WriteSummary(w io.Writer) error {
	fmt.Fprintln(w, "Correlation matrix")
	if err := r.Correlation.WriteText(w); err != nil {
		return err
	}
	fmt.Fprintln(w)

	f := r.Fit
	fmt.Fprintln(w, "OLS Regression Results")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Dep. Variable:\t%s\tR-squared:\t%.3f\n", r.Target, f.RSquared)
	fmt.Fprintf(tw, "No. Observations:\t%d\tAdj. R-squared:\t%.3f\n", f.N, f.AdjRSq)
	fmt.Fprintf(tw, "Df Residuals:\t%.0f\tF-statistic:\t%.4g\n", f.DFResid, f.F)
	fmt.Fprintf(tw, "Df Model:\t%.0f\tProb (F-statistic):\t%.3g\n", f.DFModel, f.FPValue)
	fmt.Fprintf(tw, "Rows dropped:\t%d\tLog-Likelihood:\t%.2f\n", r.DroppedRows, f.LogLik)
	fmt.Fprintf(tw, "Train/Test:\t%d/%d\tAIC:\t%.4g\n", r.Train, r.Test, f.AIC)
	fmt.Fprintf(tw, "Test R-squared:\t%.3f\tBIC:\t%.4g\n", r.TestR2, f.BIC)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tcoef\tstd err\tt\tP>|t|\t")
	for _, c := range f.Coefficients {
		fmt.Fprintf(tw, "%s\t%.4f\t%.3f\t%.3f\t%.3f\t\n", c.Name, c.Estimate, c.StdErr, c.T, c.P)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if f.Rank < len(f.Coefficients) {
		fmt.Fprintf(w, "\nThe design matrix has rank %d < %d parameters; estimates are minimum-norm.\n", f.Rank, len(f.Coefficients))
	} else if f.Condition > 1e3 {
		fmt.Fprintf(w, "\nCondition number %.3g; multicollinearity may be present.\n", f.Condition)
	}
	return nil
}
