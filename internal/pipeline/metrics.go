package pipeline

import (
	"context"
	"fmt"
	"os"

	"hretl/internal/config"
	"hretl/internal/metrics"
	"hretl/internal/metrics/datadog"
)

// SetupMetrics installs the backend named by mc and returns the function
// that flushes and uninstalls it. Every series carries job:<job> and
// run_id:<runID>; METRICS_TAGS adds more.
//
// An unknown backend is an error. "none" leaves the no-op backend in place.
func SetupMetrics(ctx context.Context, mc config.MetricsConfig, job, runID string, logger Logger) (func() error, error) {
	logger = orDiscard(logger)
	nop := func() error { return nil }

	switch mc.Backend {
	case "", "none":
		logger.Printf("metrics: disabled (backend=%q)", mc.Backend)
		return nop, nil

	case "datadog":
		tags := append([]string(nil), mc.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		if runID != "" {
			tags = append(tags, "run_id:"+runID)
		}
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: mc.FlushEvery.D(),
		})
		if err != nil {
			return nop, err
		}
		logger.Printf("metrics: backend=datadog job_name=%s tags=%v", job, tags)
		metrics.SetBackend(b)
		return func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		}, nil

	default:
		return nop, fmt.Errorf("metrics: unknown backend %q", mc.Backend)
	}
}
