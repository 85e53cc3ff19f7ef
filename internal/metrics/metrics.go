// Package metrics provides Prometheus metrics for the docqa server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation purposes.
const (
	PurposeAnswer       = "answer"
	PurposeHypothetical = "hypothetical"
)

// Metrics holds all Prometheus metrics for docqa on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	SourcesPerQuery prometheus.Histogram

	IngestRunsTotal        *prometheus.CounterVec
	IngestedDocumentsTotal prometheus.Counter
	IngestDuration         prometheus.Histogram

	LLMGenerationsTotal *prometheus.CounterVec
	PromptTokens        prometheus.Histogram
}

// New creates and registers all metrics on a fresh registry, together with
// the standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_queries_total",
			Help: "Total number of queries by retrieval mode and outcome",
		},
		[]string{"mode", "status"},
	)

	m.QueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_query_duration_seconds",
			Help:    "End-to-end query latency in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	m.SourcesPerQuery = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_query_sources",
			Help:    "Number of source records returned per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	m.IngestRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_ingest_runs_total",
			Help: "Total number of ingest runs by outcome",
		},
		[]string{"status"},
	)

	m.IngestedDocumentsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_ingested_documents_total",
			Help: "Total number of documents written to the vector store",
		},
	)

	m.IngestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_ingest_duration_seconds",
			Help:    "Duration of ingest runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.LLMGenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_llm_generations_total",
			Help: "Total number of language model generations by purpose",
		},
		[]string{"purpose"},
	)

	m.PromptTokens = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_prompt_tokens",
			Help:    "Estimated tokens in answer prompts",
			Buckets: prometheus.ExponentialBuckets(32, 2, 10),
		},
	)

	return m
}

// ObserveQuery records a finished query.
func (m *Metrics) ObserveQuery(mode, status string, d time.Duration, sources int) {
	m.QueriesTotal.WithLabelValues(mode, status).Inc()
	m.QueryDuration.WithLabelValues(mode).Observe(d.Seconds())
	if status == "ok" {
		m.SourcesPerQuery.Observe(float64(sources))
	}
}

// ObserveIngest records a finished ingest run.
func (m *Metrics) ObserveIngest(status string, documents int, d time.Duration) {
	m.IngestRunsTotal.WithLabelValues(status).Inc()
	m.IngestedDocumentsTotal.Add(float64(documents))
	m.IngestDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
