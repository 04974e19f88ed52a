// Package app wires configuration into the analysis pipeline and runs the
// HTTP and metrics servers. Both the service binary and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-graph-service/internal/analysis"
	"github.com/helixir/paper-graph-service/internal/config"
	"github.com/helixir/paper-graph-service/internal/graph"
	"github.com/helixir/paper-graph-service/internal/llm"
	"github.com/helixir/paper-graph-service/internal/observability"
	"github.com/helixir/paper-graph-service/internal/papersources/arxiv"
	"github.com/helixir/paper-graph-service/internal/pdf"
	"github.com/helixir/paper-graph-service/internal/search"
	httpserver "github.com/helixir/paper-graph-service/internal/server/http"
)

// MetricsNamespace prefixes every exported Prometheus metric.
const MetricsNamespace = "paper_graph"

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

// NewAnalyzer builds the analysis pipeline with its collaborators. The oracle
// and HTTP clients are created once and shared by every request. metrics may
// be nil.
func NewAnalyzer(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*analysis.Analyzer, error) {
	oracle, err := newOracle(cfg)
	if err != nil {
		return nil, fmt.Errorf("create topic oracle: %w", err)
	}

	source := arxiv.New(arxiv.Config{
		BaseURL:    cfg.Search.ArXiv.BaseURL,
		Timeout:    cfg.Search.ArXiv.Timeout,
		RateLimit:  cfg.Search.ArXiv.RateLimit,
		MaxResults: cfg.Search.ArXiv.MaxResults,
		MaxRetries: cfg.Search.ArXiv.MaxRetries,
	}, metrics, logger)

	searcher := search.NewSearcher(source, search.Config{
		Concurrency:  cfg.Search.Concurrency,
		MaxResults:   cfg.Search.ArXiv.MaxResults,
		QueryTimeout: cfg.Search.ArXiv.Timeout,
	}, metrics, logger)

	logger.Info().
		Str("provider", oracle.Provider()).
		Str("model", oracle.Model()).
		Int("search_concurrency", cfg.Search.Concurrency).
		Msg("analysis pipeline configured")

	return analysis.NewAnalyzer(
		pdf.NewExtractor(cfg.PDF.MaxPages, logger),
		llm.NewTopicExtractor(oracle, llm.TopicExtractorConfig{MaxInputChars: cfg.LLM.MaxInputChars}, metrics, logger),
		searcher,
		graph.NewAssembler(cfg.Graph.MaxNameLength, logger),
		analysis.Options{
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			FailOnEmpty:    cfg.Search.FailOnEmpty,
		},
		metrics,
		logger,
	), nil
}

// newOracle builds the configured topic oracle. Retries are opt-in through
// llm.max_retries and disabled by default.
func newOracle(cfg *config.Config) (llm.Oracle, error) {
	return llm.NewOracle(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
}

// Serve runs the API server, plus the metrics server when enabled, until ctx
// is cancelled or a server fails. Shutdown is graceful within the configured
// timeout.
func Serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(MetricsNamespace)
	}

	analyzer, err := NewAnalyzer(cfg, metrics, logger)
	if err != nil {
		return err
	}

	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
	}, analyzer, metrics, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", cfg.Server.HTTPAddress())
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-graph-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down paper-graph-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("paper-graph-service stopped")
	return nil
}
