// Command analyze loads the HR datasets, assembles the master table and
// prints the correlation matrix and the OLS summary for the employment
// target.
//
// Usage:
//
//	analyze -config configs/hr_job_change.yaml -corr-out corr.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"hretl/internal/analysis"
	"hretl/internal/config"
	"hretl/internal/pipeline"

	// sql sources may name any registered backend.
	_ "hretl/internal/storage/all"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run returns 0 on success, 2 on usage or config errors and 1 on runtime
// errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "configs/hr_job_change.yaml", "pipeline config path (JSON or YAML)")
	envFile := fs.String("env", "", "optional .env file (default ./.env)")
	corrOut := fs.String("corr-out", "", "optional path to write the correlation matrix as CSV")
	verbose := fs.Bool("v", false, "print column summaries while cleaning")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*cfgPath, envFiles...)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	logger := log.New(stderr, "", log.LstdFlags)
	r, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	logger.SetPrefix("run_id=" + r.RunID + " ")
	if *verbose {
		r.Info = stderr
	}

	closeMetrics, err := pipeline.SetupMetrics(ctx, cfg.Metrics, cfg.Job, r.RunID, logger)
	if err != nil {
		logger.Printf("%v; metrics disabled", err)
	}
	defer func() {
		if err := closeMetrics(); err != nil {
			logger.Printf("metrics: close/flush error: %v", err)
		}
	}()

	start := time.Now()
	ds, err := r.Prepare(ctx)
	if err != nil {
		logger.Printf("prepare: %v", err)
	}
	rep, _, err := r.Analyze(ctx, ds)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 1
	}

	if err := rep.WriteSummary(stdout); err != nil {
		fmt.Fprintf(stderr, "write summary: %v\n", err)
		return 1
	}
	if *corrOut != "" {
		if err := writeCorrelation(*corrOut, rep.Correlation); err != nil {
			fmt.Fprintf(stderr, "write correlation: %v\n", err)
			return 1
		}
		logger.Printf("correlation matrix written to %s", *corrOut)
	}

	logger.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	return 0
}

func writeCorrelation(path string, m analysis.CorrMatrix) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return m.WriteCSV(f)
}
