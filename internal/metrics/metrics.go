// Package metrics is the backend-neutral metrics facade used by the pipeline.
//
// Core code calls the helpers in this package; a concrete backend (see
// metrics/datadog) is installed once at startup with SetBackend. Until then a
// no-op backend swallows everything.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions, e.g. {"step": "load", "status": "ok"}.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names understood by the backends.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RecordsTotal        = "etl_records_total"
	JoinDroppedTotal    = "etl_join_dropped_total"
	HTTPRequestsTotal   = "etl_http_requests_total"
	HTTPErrorsTotal     = "etl_http_errors_total"
	HTTPRequestSeconds  = "etl_http_request_duration_seconds"
	HTTPDownloadBytes   = "etl_http_download_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// RecordStep counts one pipeline step and its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRecords counts rows of a kind, e.g. "loaded_enrollee" or "published".
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordJoinDropped counts left rows that found no partner in a join step.
func RecordJoinDropped(step string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(JoinDroppedTotal, float64(n), Labels{"step": step})
}

// RecordHTTP records one HTTP fetch. status is 0 when no response arrived.
func RecordHTTP(status int, d time.Duration, bytes int64, err error) {
	s := "error"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	l := Labels{"status": s}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status < 200 || status >= 300 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestSeconds, d.Seconds(), l)
	if bytes > 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}
