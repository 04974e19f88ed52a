package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper graph service.
// Metrics are organized by subsystem: analyses, text extraction, topics,
// searches, sources and LLM operations. All collectors are registered via
// promauto with the default Prometheus registry.
type Metrics struct {
	// AnalysesStarted counts analyses accepted by the pipeline.
	AnalysesStarted prometheus.Counter

	// AnalysesCompleted counts analyses that produced a graph.
	AnalysesCompleted prometheus.Counter

	// AnalysesFailed counts failed analyses, labeled by stage and error kind.
	AnalysesFailed *prometheus.CounterVec

	// AnalysisDuration observes the end-to-end duration of analyses in seconds.
	AnalysisDuration prometheus.Histogram

	// StageDuration observes the duration of each pipeline stage in seconds.
	StageDuration *prometheus.HistogramVec

	// UploadBytes observes the size of accepted uploads.
	UploadBytes prometheus.Histogram

	// PagesExtracted observes the number of pages read per document.
	PagesExtracted prometheus.Histogram

	// TextChars observes the length of extracted text per document.
	TextChars prometheus.Histogram

	// TopicsExtracted counts topics returned by the oracle.
	TopicsExtracted prometheus.Counter

	// SubtopicsExtracted counts subtopics returned by the oracle.
	SubtopicsExtracted prometheus.Counter

	// TopicsPerAnalysis observes the distribution of topic counts per analysis.
	TopicsPerAnalysis prometheus.Histogram

	// SearchesStarted counts searches initiated, labeled by paper source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by paper source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by paper source.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// EntriesSkipped counts malformed search entries that were dropped, labeled by source.
	EntriesSkipped *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to paper source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to paper source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Analyses
		AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_started_total",
			Help:      "Total number of paper analyses started",
		}),
		AnalysesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_completed_total",
			Help:      "Total number of paper analyses completed successfully",
		}),
		AnalysesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_failed_total",
			Help:      "Total number of paper analyses that failed by stage and kind",
		}, []string{"stage", "kind"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of paper analyses in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of analysis pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),

		// Documents
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_bytes",
			Help:      "Size of accepted PDF uploads in bytes",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		}),
		PagesExtracted: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pages_extracted",
			Help:      "Number of pages read per document",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}),
		TextChars: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "text_chars",
			Help:      "Number of characters extracted per document",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),

		// Topics
		TopicsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_extracted_total",
			Help:      "Total number of topics extracted",
		}),
		SubtopicsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subtopics_extracted_total",
			Help:      "Total number of subtopics extracted",
		}),
		TopicsPerAnalysis: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "topics_per_analysis",
			Help:      "Number of topics extracted per analysis",
			Buckets:   []float64{1, 2, 3, 4, 5, 10},
		}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of paper searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of paper searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of paper searches that failed by source",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search by source",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{"source"}),
		EntriesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Total number of malformed search entries dropped by source",
		}, []string{"source"}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to paper sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to paper sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordAnalysisStarted records that an analysis has started.
func (m *Metrics) RecordAnalysisStarted(uploadBytes int) {
	m.AnalysesStarted.Inc()
	m.UploadBytes.Observe(float64(uploadBytes))
}

// RecordAnalysisCompleted records that an analysis has completed.
func (m *Metrics) RecordAnalysisCompleted(durationSeconds float64) {
	m.AnalysesCompleted.Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordAnalysisFailed records that an analysis failed in the given stage.
func (m *Metrics) RecordAnalysisFailed(stage, kind string, durationSeconds float64) {
	m.AnalysesFailed.WithLabelValues(stage, kind).Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordTextExtracted records text extraction results.
func (m *Metrics) RecordTextExtracted(pages, chars int) {
	m.PagesExtracted.Observe(float64(pages))
	m.TextChars.Observe(float64(chars))
}

// RecordTopicsExtracted records topic extraction results.
func (m *Metrics) RecordTopicsExtracted(topics, subtopics int) {
	m.TopicsExtracted.Add(float64(topics))
	m.SubtopicsExtracted.Add(float64(subtopics))
	m.TopicsPerAnalysis.Observe(float64(topics))
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, paperCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordEntriesSkipped records malformed entries dropped from a search response.
func (m *Metrics) RecordEntriesSkipped(source string, count int) {
	m.EntriesSkipped.WithLabelValues(source).Add(float64(count))
}

// RecordSourceRequest records a request to a paper source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a paper source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
