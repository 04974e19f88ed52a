// Package observability provides logging and metrics support for the paper
// graph service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithAnalysisContext(logger, requestID, "paper.pdf")
//	logger.Info().Msg("analysis started")
//
// # Metrics
//
// Metrics are registered with the default Prometheus registry on creation:
//
//	metrics := observability.NewMetrics("paper_graph")
//	metrics.RecordAnalysisStarted()
//	metrics.RecordSearchCompleted("arxiv", 3, 0.42)
//
// # Standard Fields
//
//   - request_id: chi request identifier
//   - correlation_id: caller supplied or generated correlation identifier
//   - filename: uploaded PDF name
//   - stage: pipeline stage (extract_text, extract_topics, ...)
//   - query: search query text
//   - source: search provider (arxiv)
//
// All components are safe for concurrent use from multiple goroutines.
package observability
