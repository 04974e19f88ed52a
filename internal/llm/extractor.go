// Package llm turns paper text into a validated topic tree using a
// language-model oracle (OpenAI or Anthropic).
//
// Example usage:
//
//	oracle, err := llm.NewOracle(llm.FactoryConfig{Provider: "openai", ...})
//	extractor := llm.NewTopicExtractor(oracle, llm.TopicExtractorConfig{MaxInputChars: 4000}, metrics, logger)
//	topics, err := extractor.ExtractTopics(ctx, text)
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/observability"
)

// DefaultMaxInputChars is the number of leading characters sent to the oracle.
const DefaultMaxInputChars = 4000

const extractTopicsOperation = "extract_topics"

// TopicExtractorConfig configures a TopicExtractor.
type TopicExtractorConfig struct {
	// MaxInputChars bounds the text sent to the oracle, counted in runes.
	MaxInputChars int
}

// TopicExtractor derives the topic tree for a paper with exactly one oracle call.
type TopicExtractor struct {
	oracle        Oracle
	maxInputChars int
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// NewTopicExtractor creates a TopicExtractor. metrics may be nil.
func NewTopicExtractor(oracle Oracle, cfg TopicExtractorConfig, metrics *observability.Metrics, logger zerolog.Logger) *TopicExtractor {
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &TopicExtractor{
		oracle:        oracle,
		maxInputChars: maxChars,
		metrics:       metrics,
		logger:        logger.With().Str("component", "topic-extractor").Logger(),
	}
}

// ExtractTopics sends the leading part of text to the oracle and parses the
// reply into topics. Oracle transport errors are returned as is; a reply that
// is not a well-formed, non-empty topic array yields a *domain.ExtractionError.
// Malformed replies are never retried.
func (e *TopicExtractor) ExtractTopics(ctx context.Context, text string) ([]domain.Topic, error) {
	input := truncateRunes(text, e.maxInputChars)

	e.logger.Debug().
		Str("provider", e.oracle.Provider()).
		Str("model", e.oracle.Model()).
		Int("input_chars", len([]rune(input))).
		Msg("requesting topics")

	start := time.Now()
	completion, err := e.oracle.Complete(ctx, TopicSystemPrompt, input)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordLLMRequestFailed(extractTopicsOperation, e.oracle.Model(), errorType(err))
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordLLMRequest(extractTopicsOperation, completion.Model, time.Since(start).Seconds(),
			completion.InputTokens, completion.OutputTokens)
	}

	topics, err := ParseTopics(completion.Text)
	if err != nil {
		e.logger.Warn().Err(err).Int("reply_chars", len(completion.Text)).Msg("oracle reply rejected")
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordTopicsExtracted(len(topics), domain.SubtopicCount(topics))
	}
	return topics, nil
}

// ParseTopics decodes a raw oracle reply into a validated topic list.
// Surrounding whitespace and a Markdown code fence are tolerated; anything
// other than a non-empty JSON array of schema-conforming topics is an
// *domain.ExtractionError.
func ParseTopics(reply string) ([]domain.Topic, error) {
	body := stripCodeFence(strings.TrimSpace(reply))
	if body == "" {
		return nil, domain.NewExtractionError("topic", "empty oracle reply", nil)
	}
	if !strings.HasPrefix(body, "[") {
		if json.Valid([]byte(body)) {
			return nil, domain.NewExtractionError("topic", "oracle reply is not a JSON array", nil)
		}
		return nil, domain.NewExtractionError("topic", "oracle reply is not valid JSON", nil)
	}

	var topics []domain.Topic
	if err := json.Unmarshal([]byte(body), &topics); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, domain.NewExtractionError("topic", "oracle reply does not match the topic schema", err)
		}
		return nil, domain.NewExtractionError("topic", "oracle reply is not valid JSON", err)
	}

	if len(topics) == 0 {
		return nil, domain.NewExtractionError("topic", "could not extract topics", nil)
	}

	for i := range topics {
		topics[i].Name = strings.TrimSpace(topics[i].Name)
		for j := range topics[i].Subtopics {
			topics[i].Subtopics[j].Name = strings.TrimSpace(topics[i].Subtopics[j].Name)
		}
	}

	if err := domain.ValidateTopics(topics); err != nil {
		return nil, domain.NewExtractionError("topic", "oracle reply does not match the topic schema", err)
	}
	return topics, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
