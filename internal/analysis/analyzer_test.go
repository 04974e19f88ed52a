package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/graph"
	"github.com/helixir/paper-graph-service/internal/llm"
	"github.com/helixir/paper-graph-service/internal/observability"
	"github.com/helixir/paper-graph-service/internal/papersources"
	"github.com/helixir/paper-graph-service/internal/pdf"
	"github.com/helixir/paper-graph-service/internal/search"
)

type mockTextExtractor struct {
	extractFn func(ctx context.Context, data []byte) (*pdf.Result, error)
	calls     int
}

func (m *mockTextExtractor) Extract(ctx context.Context, data []byte) (*pdf.Result, error) {
	m.calls++
	return m.extractFn(ctx, data)
}

func textOf(s string) *mockTextExtractor {
	return &mockTextExtractor{extractFn: func(context.Context, []byte) (*pdf.Result, error) {
		return &pdf.Result{Text: s, PagesRead: 1, PagesTotal: 1}, nil
	}}
}

type mockTopicExtractor struct {
	extractFn func(ctx context.Context, text string) ([]domain.Topic, error)
	calls     int
}

func (m *mockTopicExtractor) ExtractTopics(ctx context.Context, text string) ([]domain.Topic, error) {
	m.calls++
	return m.extractFn(ctx, text)
}

type mockSearcher struct {
	papers []domain.RelatedPaper
	calls  int
}

func (m *mockSearcher) FindRelatedPapers(ctx context.Context, topics []domain.Topic) []domain.RelatedPaper {
	m.calls++
	return m.papers
}

// mockOracle answers every completion with a fixed reply.
type mockOracle struct {
	reply string
}

func (m *mockOracle) Complete(ctx context.Context, systemPrompt, text string) (*llm.Completion, error) {
	return &llm.Completion{Text: m.reply, Model: "mock"}, nil
}
func (m *mockOracle) Provider() string { return "mock" }
func (m *mockOracle) Model() string    { return "mock" }

// onePaperSource returns a single paper per query.
type onePaperSource struct{}

func (onePaperSource) Search(ctx context.Context, p papersources.SearchParams) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{Papers: []domain.RelatedPaper{{
		ID:        "id-" + p.Query,
		Title:     "About " + p.Query,
		Summary:   domain.SummaryNotFound,
		Published: "2021-05-05",
		Authors:   []string{"A. Author"},
		Topic:     p.Query,
	}}}, nil
}
func (onePaperSource) SourceType() domain.SourceType { return domain.SourceTypeArXiv }
func (onePaperSource) Name() string                  { return "one" }

func oneTopic() []domain.Topic {
	return []domain.Topic{{Name: "neural networks", Importance: 9, Subtopics: []domain.Subtopic{{Name: "gradient descent", Importance: 6}}}}
}

func newTestAnalyzer(text TextExtractor, topics TopicExtractor, searcher RelatedWorkSearcher, opts Options, metrics *observability.Metrics) *Analyzer {
	return NewAnalyzer(text, topics, searcher, graph.NewAssembler(0, zerolog.Nop()), opts, metrics, zerolog.Nop())
}

func requireStageError(t *testing.T, err error, stage domain.Stage, kind domain.ErrorKind) *domain.StageError {
	t.Helper()
	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, stage, stageErr.Stage)
	assert.Equal(t, kind, stageErr.Kind)
	return stageErr
}

func TestAnalyzer_EndToEnd(t *testing.T) {
	oracle := &mockOracle{reply: `[{"topic":"neural networks","importance":9,"subtopics":[{"topic":"gradient descent","importance":6}]}]`}
	topicExtractor := llm.NewTopicExtractor(oracle, llm.TopicExtractorConfig{}, nil, zerolog.Nop())
	searcher := search.NewSearcher(onePaperSource{}, search.Config{}, nil, zerolog.Nop())
	m := observability.NewMetrics("test_analysis_e2e")

	a := newTestAnalyzer(textOf("Paper about neural networks and optimization."), topicExtractor, searcher, Options{}, m)

	result, err := a.Analyze(context.Background(), Upload{Filename: "paper.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	require.Len(t, result.Graph.Nodes, 3)
	assert.Len(t, result.Graph.Links, 2)

	assert.Equal(t, domain.CategoryMain, result.Graph.Nodes[0].Category)
	assert.Equal(t, "paper.pdf", result.Graph.Nodes[0].DisplayName)
	assert.Equal(t, domain.CategoryTopic, result.Graph.Nodes[1].Category)
	assert.Equal(t, domain.CategorySubtopic, result.Graph.Nodes[2].Category)

	require.Len(t, result.RelatedPapers, 2)
	assert.Equal(t, "neural networks", result.RelatedPapers[0].Topic)
	assert.Equal(t, "gradient descent", result.RelatedPapers[1].Topic)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesCompleted))
}

func TestAnalyzer_ReceiveFile(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
		opts   Options
		target error
	}{
		{"rejects non-pdf suffix", Upload{Filename: "notes.txt", Data: []byte("hello")}, Options{}, domain.ErrInvalidInput},
		{"suffix check is case-sensitive", Upload{Filename: "paper.PDF", Data: []byte("x")}, Options{}, domain.ErrInvalidInput},
		{"rejects oversized upload", Upload{Filename: "big.pdf", Data: make([]byte, 15<<20)}, Options{MaxUploadBytes: 10 << 20}, domain.ErrPayloadTooLarge},
		{"rejects empty upload", Upload{Filename: "empty.pdf"}, Options{}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := textOf("unused")
			topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) { return oneTopic(), nil }}
			a := newTestAnalyzer(text, topics, &mockSearcher{}, tt.opts, nil)

			result, err := a.Analyze(context.Background(), tt.upload)
			assert.Nil(t, result)
			requireStageError(t, err, domain.StageReceiveFile, domain.KindValidation)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, 0, text.calls, "no stage may run after a rejected upload")
			assert.Equal(t, 0, topics.calls)
		})
	}
}

func TestAnalyzer_StageFailures(t *testing.T) {
	upload := Upload{Filename: "paper.pdf", Data: []byte("%PDF")}
	okTopics := func() *mockTopicExtractor {
		return &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) { return oneTopic(), nil }}
	}

	t.Run("invalid pdf is a validation error", func(t *testing.T) {
		text := &mockTextExtractor{extractFn: func(context.Context, []byte) (*pdf.Result, error) {
			return nil, fmt.Errorf("%w: bad header", pdf.ErrInvalidPDF)
		}}
		_, err := newTestAnalyzer(text, okTopics(), &mockSearcher{}, Options{}, nil).Analyze(context.Background(), upload)
		requireStageError(t, err, domain.StageExtractText, domain.KindValidation)
	})

	t.Run("pdf without text is an extraction error", func(t *testing.T) {
		text := &mockTextExtractor{extractFn: func(context.Context, []byte) (*pdf.Result, error) {
			return nil, pdf.ErrNoText
		}}
		_, err := newTestAnalyzer(text, okTopics(), &mockSearcher{}, Options{}, nil).Analyze(context.Background(), upload)
		stageErr := requireStageError(t, err, domain.StageExtractText, domain.KindExtraction)
		assert.ErrorIs(t, stageErr, pdf.ErrNoText)
	})

	t.Run("whitespace-only text is a validation error", func(t *testing.T) {
		topics := okTopics()
		_, err := newTestAnalyzer(textOf(" \n\t "), topics, &mockSearcher{}, Options{}, nil).Analyze(context.Background(), upload)
		requireStageError(t, err, domain.StageExtractText, domain.KindValidation)
		assert.Equal(t, 0, topics.calls)
	})

	t.Run("malformed oracle reply is an extraction error", func(t *testing.T) {
		topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) {
			return nil, domain.NewExtractionError("topic", "oracle reply does not match the topic schema",
				domain.NewValidationError("topics[0].Importance", "out of range"))
		}}
		searcher := &mockSearcher{}
		_, err := newTestAnalyzer(textOf("text"), topics, searcher, Options{}, nil).Analyze(context.Background(), upload)
		stageErr := requireStageError(t, err, domain.StageExtractTopics, domain.KindExtraction)
		assert.Equal(t, "oracle reply does not match the topic schema", stageErr.PublicMessage())
		assert.Equal(t, 0, searcher.calls)
	})

	t.Run("oracle transport failure is an upstream error", func(t *testing.T) {
		topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) {
			return nil, errors.New("connection refused")
		}}
		m := observability.NewMetrics("test_analysis_upstream")
		_, err := newTestAnalyzer(textOf("text"), topics, &mockSearcher{}, Options{}, m).Analyze(context.Background(), upload)
		stageErr := requireStageError(t, err, domain.StageExtractTopics, domain.KindUpstream)
		assert.NotContains(t, stageErr.PublicMessage(), "connection refused")
		assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesFailed.WithLabelValues("extract_topics", "upstream")))
	})

	t.Run("empty related papers succeed by default", func(t *testing.T) {
		result, err := newTestAnalyzer(textOf("text"), okTopics(), &mockSearcher{}, Options{}, nil).Analyze(context.Background(), upload)
		require.NoError(t, err)
		assert.NotNil(t, result.RelatedPapers)
		assert.Empty(t, result.RelatedPapers)
	})

	t.Run("empty related papers fail when configured", func(t *testing.T) {
		_, err := newTestAnalyzer(textOf("text"), okTopics(), &mockSearcher{}, Options{FailOnEmpty: true}, nil).Analyze(context.Background(), upload)
		requireStageError(t, err, domain.StageSearchRelated, domain.KindExtraction)
	})

	t.Run("malformed topics fail graph assembly", func(t *testing.T) {
		topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) {
			return []domain.Topic{{Name: "x", Importance: 42}}, nil
		}}
		_, err := newTestAnalyzer(textOf("text"), topics, &mockSearcher{}, Options{}, nil).Analyze(context.Background(), upload)
		requireStageError(t, err, domain.StageAssembleGraph, domain.KindExtraction)
	})

	t.Run("cancelled context fails at the next stage boundary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) {
			cancel()
			return oneTopic(), nil
		}}
		searcher := &mockSearcher{}
		_, err := newTestAnalyzer(textOf("text"), topics, searcher, Options{}, nil).Analyze(ctx, upload)
		requireStageError(t, err, domain.StageSearchRelated, domain.KindUnexpected)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, domain.ErrCancelled)
		assert.Equal(t, 0, searcher.calls)
	})
}

func TestAnalyzer_FailureLogCarriesStage(t *testing.T) {
	var buf bytes.Buffer
	topics := &mockTopicExtractor{extractFn: func(context.Context, string) ([]domain.Topic, error) {
		return nil, domain.NewExtractionError("oracle", "reply is not valid JSON", nil)
	}}
	a := NewAnalyzer(textOf("some paper text"), topics, &mockSearcher{}, graph.NewAssembler(0, zerolog.Nop()),
		Options{}, nil, zerolog.New(&buf))

	_, err := a.Analyze(context.Background(), Upload{Filename: "paper.pdf", Data: []byte("%PDF")})
	requireStageError(t, err, domain.StageExtractTopics, domain.KindExtraction)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["level"] == "error" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, "extract_topics", entry["stage"])
	assert.Equal(t, "extraction", entry["kind"])
	assert.Equal(t, "paper.pdf", entry["filename"])
}
