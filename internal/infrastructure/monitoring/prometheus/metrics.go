package prometheus

import (
	"strconv"
	"time"
)

// Resolution outcomes reported by the compound resolver.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Record outcomes reported per pass.
const (
	RecordPersisted = "persisted"
	RecordFailed    = "failed"
	RecordSkipped   = "skipped"
)

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPassDurationBuckets     = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200}
	DefaultAnnotatorLatencyBuckets = []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultStoreDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// PipelineMetrics holds every metric the reconciler emits.
type PipelineMetrics struct {
	// Passes
	RecordsTotal        CounterVec
	PassDuration        HistogramVec
	PassLastSuccess     GaugeVec
	EquationsMalformed  CounterVec
	ConstituentsTotal   CounterVec
	SourceBytes         CounterVec
	SourceFetchDuration HistogramVec

	// Compound resolution
	ResolutionsTotal   CounterVec
	ResolutionDuration HistogramVec
	CacheAccessTotal   CounterVec

	// Persistence and sinks
	StoreDuration   HistogramVec
	SinkErrorsTotal CounterVec

	// Read API
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
}

// NewPipelineMetrics registers all metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	m := &PipelineMetrics{}

	m.RecordsTotal = collector.RegisterCounter("records_total", "Records processed per pass and outcome", "pass", "outcome")
	m.PassDuration = collector.RegisterHistogram("pass_duration_seconds", "Wall time of a reconciliation pass", DefaultPassDurationBuckets, "pass")
	m.PassLastSuccess = collector.RegisterGauge("pass_last_success_timestamp_seconds", "Unix time of the last pass without failures", "pass")
	m.EquationsMalformed = collector.RegisterCounter("equations_malformed_total", "Equations skipped because they could not be split")
	m.ConstituentsTotal = collector.RegisterCounter("constituents_total", "Reaction constituents by resolution state", "state")
	m.SourceBytes = collector.RegisterCounter("source_bytes_total", "Bytes read from raw sources", "source")
	m.SourceFetchDuration = collector.RegisterHistogram("source_fetch_duration_seconds", "Time to open a raw source", DefaultHTTPDurationBuckets, "source", "origin")

	m.ResolutionsTotal = collector.RegisterCounter("resolutions_total", "Compound resolutions by outcome", "outcome")
	m.ResolutionDuration = collector.RegisterHistogram("resolution_duration_seconds", "Annotator round-trip time", DefaultAnnotatorLatencyBuckets, "outcome")
	m.CacheAccessTotal = collector.RegisterCounter("resolution_cache_access_total", "Resolution cache lookups", "result")

	m.StoreDuration = collector.RegisterHistogram("store_duration_seconds", "Document store latency", DefaultStoreDurationBuckets, "operation")
	m.SinkErrorsTotal = collector.RegisterCounter("sink_errors_total", "Failed deliveries to secondary sinks", "sink")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Read API requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "Read API latency", DefaultHTTPDurationBuckets, "method", "path")

	return m
}

// ObserveResolution records one annotator lookup.
func (m *PipelineMetrics) ObserveResolution(outcome string, d time.Duration) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// CacheAccess records a resolution cache hit or miss.
func (m *PipelineMetrics) CacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheAccessTotal.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) RecordOutcome(pass, outcome string) {
	m.RecordsTotal.WithLabelValues(pass, outcome).Inc()
}

func (m *PipelineMetrics) MalformedEquation() {
	m.EquationsMalformed.WithLabelValues().Inc()
}

// Constituents adds resolved and unresolved counts for one reaction.
func (m *PipelineMetrics) Constituents(resolved, unresolved int) {
	m.ConstituentsTotal.WithLabelValues("resolved").Add(float64(resolved))
	m.ConstituentsTotal.WithLabelValues("unresolved").Add(float64(unresolved))
}

func (m *PipelineMetrics) SinkError(sink string) {
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

func (m *PipelineMetrics) ObserveStore(operation string, d time.Duration) {
	m.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *PipelineMetrics) ObserveFetch(source, origin string, d time.Duration) {
	m.SourceFetchDuration.WithLabelValues(source, origin).Observe(d.Seconds())
}

func (m *PipelineMetrics) SourceRead(source string, n int64) {
	m.SourceBytes.WithLabelValues(source).Add(float64(n))
}

// PassFinished records a pass duration and, when nothing failed, the
// completion time.
func (m *PipelineMetrics) PassFinished(pass string, d time.Duration, failed int, at time.Time) {
	m.PassDuration.WithLabelValues(pass).Observe(d.Seconds())
	if failed == 0 {
		m.PassLastSuccess.WithLabelValues(pass).Set(float64(at.Unix()))
	}
}

func (m *PipelineMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
