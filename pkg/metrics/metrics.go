// Package metrics exposes the fleet service's Prometheus metrics: pipeline
// stage timings and failures, retrieval and ingestion volume, generative
// backend calls and candidate audit mismatches.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleet"

// DefaultBuckets are the stage duration buckets in seconds. Generative calls
// run for tens of seconds, so the range extends past the client defaults.
var DefaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	placeholders    prometheus.Counter
	retrieved       prometheus.Histogram
	auditMismatches prometheus.Counter

	ingestDuration *prometheus.HistogramVec
	ingestChunks   prometheus.Counter
	corpusSize     prometheus.Gauge

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
}

// New creates and registers every collector, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Duration of recommendation pipeline stages.",
			Buckets: DefaultBuckets,
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stage_failures_total",
			Help: "Failed recommendation pipeline stages.",
		}, []string{"stage"}),
		placeholders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "report_placeholders_total",
			Help: "Report sections replaced by an unavailable placeholder.",
		}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "retrieved_passages",
			Help:    "Passages retrieved per cost analysis.",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		}),
		auditMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "candidate_audit_mismatches_total",
			Help: "Candidates not named in their cost report.",
		}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "ingest_stage_duration_seconds",
			Help:    "Duration of corpus ingestion stages.",
			Buckets: DefaultBuckets,
		}, []string{"stage", "status"}),
		ingestChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingest_chunks_total",
			Help: "Chunks written to the corpus index.",
		}),
		corpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "corpus_passages",
			Help: "Passages in the loaded corpus snapshot.",
		}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backend_calls_total",
			Help: "Generative backend calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "backend_call_duration_seconds",
			Help:    "Duration of generative backend calls.",
			Buckets: DefaultBuckets,
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.stageDuration, m.stageFailures, m.placeholders, m.retrieved, m.auditMismatches,
		m.ingestDuration, m.ingestChunks, m.corpusSize,
		m.backendCalls, m.backendDuration, m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageDone records one pipeline stage run.
func (m *Metrics) StageDone(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// Retrieved records the passage count of one retrieval.
func (m *Metrics) Retrieved(passages int) { m.retrieved.Observe(float64(passages)) }

// Placeholders adds the placeholder sections of one report.
func (m *Metrics) Placeholders(n int) { m.placeholders.Add(float64(n)) }

// AuditMismatches adds candidates missing from their cost report.
func (m *Metrics) AuditMismatches(n int) { m.auditMismatches.Add(float64(n)) }

// IngestStage records one ingestion stage run.
func (m *Metrics) IngestStage(stage string, d time.Duration, err error) {
	m.ingestDuration.WithLabelValues(stage, status(err)).Observe(d.Seconds())
}

// Ingested records a completed ingestion of n chunks.
func (m *Metrics) Ingested(chunks int) { m.ingestChunks.Add(float64(chunks)) }

// CorpusSize sets the passage count of the loaded snapshot.
func (m *Metrics) CorpusSize(n int) { m.corpusSize.Set(float64(n)) }

// BackendCall records one generative backend call.
func (m *Metrics) BackendCall(provider, outcome string, d time.Duration) {
	m.backendCalls.WithLabelValues(provider, outcome).Inc()
	m.backendDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route string, code int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
