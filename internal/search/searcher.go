// Package search finds related literature for extracted topics by fanning
// queries out to a paper source.
package search

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/observability"
	"github.com/helixir/paper-graph-service/internal/papersources"
)

const (
	// DefaultConcurrency is the number of queries in flight at once.
	DefaultConcurrency = 4

	// DefaultMaxResults is the number of entries requested per query.
	DefaultMaxResults = 3

	// DefaultQueryTimeout bounds each individual query.
	DefaultQueryTimeout = 10 * time.Second
)

// Config controls the search fan-out.
type Config struct {
	Concurrency  int
	MaxResults   int
	QueryTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
}

// Searcher runs one query per topic and subtopic name against a paper source.
// It is safe for concurrent use.
type Searcher struct {
	source  papersources.PaperSource
	config  Config
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewSearcher creates a Searcher. metrics may be nil.
func NewSearcher(source papersources.PaperSource, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Searcher {
	cfg.applyDefaults()
	return &Searcher{
		source:  source,
		config:  cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "related_work_searcher").Logger(),
	}
}

// Queries flattens topics into search strings: every topic name in order,
// followed by every subtopic name in order. Duplicates are kept.
func Queries(topics []domain.Topic) []string {
	queries := make([]string, 0, len(topics)+domain.SubtopicCount(topics))
	for _, t := range topics {
		queries = append(queries, t.Name)
	}
	for _, t := range topics {
		for _, st := range t.Subtopics {
			queries = append(queries, st.Name)
		}
	}
	return queries
}

// FindRelatedPapers searches every flattened query and concatenates the
// results in query order. A failing query contributes nothing and never
// affects the others, so the call itself cannot fail. The returned slice is
// never nil.
func (s *Searcher) FindRelatedPapers(ctx context.Context, topics []domain.Topic) []domain.RelatedPaper {
	queries := Queries(topics)
	slots := make([][]domain.RelatedPaper, len(queries))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			slots[i] = s.runQuery(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, papers := range slots {
		total += len(papers)
	}
	related := make([]domain.RelatedPaper, 0, total)
	for _, papers := range slots {
		related = append(related, papers...)
	}

	s.logger.Debug().
		Int("queries", len(queries)).
		Int("papers", len(related)).
		Msg("related work search finished")

	return related
}

func (s *Searcher) runQuery(ctx context.Context, query string) (papers []domain.RelatedPaper) {
	source := string(s.source.SourceType())
	logger := observability.WithSearchContext(s.logger, query, source)

	if s.metrics != nil {
		s.metrics.RecordSearchStarted(source)
	}
	start := time.Now()

	// A panicking source loses its own query only; the fan-out goroutines
	// are outside any HTTP recoverer.
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.RecordSearchFailed(source, time.Since(start).Seconds())
			}
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("related work query panicked, skipping")
			papers = nil
		}
	}()

	qctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	result, err := s.source.Search(qctx, papersources.SearchParams{
		Query:      query,
		MaxResults: s.config.MaxResults,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSearchFailed(source, time.Since(start).Seconds())
		}
		logger.Warn().Err(err).Msg("related work query failed, skipping")
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordSearchCompleted(source, len(result.Papers), time.Since(start).Seconds())
	}
	logger.Debug().
		Int("papers", len(result.Papers)).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("related work query completed")

	return result.Papers
}
