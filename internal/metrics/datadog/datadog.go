// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted:
//   - periodically on a ticker (default once per minute), so long loads still
//     produce a time series
//   - once more on Close(), so short CLI runs are not lost
//
// Flush snapshots and resets the buffers under a mutex, then submits out of
// lock. A killed process loses whatever was buffered since the last flush.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"hretl/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "hretl".
	JobName string

	// Tags are extra Datadog tags, e.g. "run_id:<uuid>" or "env:prod".
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of *datadogV2.MetricsApi the backend needs,
// so tests can capture payloads without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// series identifies one buffered series: Datadog metric name plus tags.
type seriesKey struct {
	metric string
	tags   string // sorted, comma-joined extra tags
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu         sync.Mutex
	counters   map[seriesKey]float64
	histograms map[seriesKey][]float64
}

// metricSpec maps an internal metric name to its Datadog name and the labels
// that become tags. Labels not listed are dropped.
type metricSpec struct {
	ddName   string
	tagKeys  []string
	required string // label that must be non-empty, if any
}

var counterSpecs = map[string]metricSpec{
	metrics.StepTotal:         {ddName: "hretl.step.total", tagKeys: []string{"step", "status"}},
	metrics.RecordsTotal:      {ddName: "hretl.records.total", tagKeys: []string{"kind"}, required: "kind"},
	metrics.JoinDroppedTotal:  {ddName: "hretl.join.dropped.total", tagKeys: []string{"step"}, required: "step"},
	metrics.HTTPRequestsTotal: {ddName: "hretl.http.requests.total", tagKeys: []string{"status"}},
	metrics.HTTPErrorsTotal:   {ddName: "hretl.http.errors.total", tagKeys: []string{"status"}},
}

var histogramSpecs = map[string]metricSpec{
	metrics.StepDurationSeconds: {ddName: "hretl.step.duration_seconds", tagKeys: []string{"step", "status"}},
	metrics.HTTPRequestSeconds:  {ddName: "hretl.http.request_duration_seconds", tagKeys: []string{"status"}},
	metrics.HTTPDownloadBytes:   {ddName: "hretl.http.download_bytes", tagKeys: []string{"status"}},
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. API credentials come from DD_API_KEY / DD_SITE as
// the client reads them.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "hretl"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		if client == nil {
			return nil, wrapInitErr(fmt.Errorf("nil api client"))
		}
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[seriesKey]float64),
		histograms: make(map[seriesKey][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call it once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// keyFor builds the buffer key, or ok=false when the event should be dropped.
func keyFor(spec metricSpec, labels metrics.Labels) (seriesKey, bool) {
	if spec.required != "" && labels[spec.required] == "" {
		return seriesKey{}, false
	}
	tags := make([]string, 0, len(spec.tagKeys))
	for _, k := range spec.tagKeys {
		v := labels[k]
		if v == "" {
			v = "unknown"
		}
		tags = append(tags, k+":"+v)
	}
	return seriesKey{metric: spec.ddName, tags: strings.Join(tags, ",")}, true
}

// IncCounter implements metrics.Backend. Unknown names and non-positive
// deltas are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	spec, ok := counterSpecs[name]
	if !ok {
		return
	}
	k, ok := keyFor(spec, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Unknown names and negative
// values are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	spec, ok := histogramSpecs[name]
	if !ok {
		return
	}
	k, ok := keyFor(spec, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.histograms[k] = append(b.histograms[k], value)
	b.mu.Unlock()
}

type snapshot struct {
	counters   map[seriesKey]float64
	histograms map[seriesKey][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.counters) == 0 && len(s.histograms) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counters: b.counters, histograms: b.histograms}
	b.counters = make(map[seriesKey]float64)
	b.histograms = make(map[seriesKey][]float64)
	return s
}

// Flush submits buffered metrics and resets the buffers, even when the
// submission fails. Returns nil when there is nothing to send.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure so the naming and tagging contract can be tested
// without a clock or network. Output is sorted by metric name then tags.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counters)+6*len(s.histograms))

	for k, v := range s.counters {
		if v == 0 {
			continue
		}
		series = append(series, countSeries(k.metric, v, b.tagsFor(k), nowUnix))
	}
	for k, samples := range s.histograms {
		addPercentiles(&series, b.tagsFor(k), k.metric, samples, nowUnix)
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

func (b *Backend) tagsFor(k seriesKey) []string {
	if k.tags == "" {
		return withTags(b.baseTags)
	}
	return withTags(b.baseTags, strings.Split(k.tags, ",")...)
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for a sample
// set. It sorts a copy, never the input.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:hretl".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
