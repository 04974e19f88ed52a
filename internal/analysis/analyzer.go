// Package analysis runs the paper analysis pipeline: text extraction, topic
// extraction, related-work search and graph assembly.
//
// Every failure leaves the pipeline as a *domain.StageError naming the stage
// that failed and classifying the cause, so transports can map it to a
// response without inspecting internals.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/observability"
	"github.com/helixir/paper-graph-service/internal/pdf"
)

// PDFSuffix is the required filename suffix of an upload. The check is
// case-sensitive.
const PDFSuffix = ".pdf"

// TextExtractor pulls plain text from an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*pdf.Result, error)
}

// TopicExtractor turns paper text into ranked topics.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, text string) ([]domain.Topic, error)
}

// RelatedWorkSearcher finds literature related to a set of topics. It never
// fails; unavailable results are simply absent.
type RelatedWorkSearcher interface {
	FindRelatedPapers(ctx context.Context, topics []domain.Topic) []domain.RelatedPaper
}

// GraphAssembler builds the response graph.
type GraphAssembler interface {
	Assemble(title string, topics []domain.Topic, related []domain.RelatedPaper) (*domain.AnalysisResult, error)
}

// Upload is a received document.
type Upload struct {
	Filename string
	Data     []byte
}

// Options tunes pipeline policy.
type Options struct {
	// MaxUploadBytes rejects larger uploads. Zero disables the check.
	MaxUploadBytes int64
	// FailOnEmpty makes an empty related-paper list fail the analysis.
	FailOnEmpty bool
}

// Analyzer orchestrates one analysis per call. Its collaborators are shared
// and must be safe for concurrent use.
type Analyzer struct {
	text      TextExtractor
	topics    TopicExtractor
	searcher  RelatedWorkSearcher
	assembler GraphAssembler
	opts      Options
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewAnalyzer creates an Analyzer. metrics may be nil.
func NewAnalyzer(
	text TextExtractor,
	topics TopicExtractor,
	searcher RelatedWorkSearcher,
	assembler GraphAssembler,
	opts Options,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Analyzer {
	return &Analyzer{
		text:      text,
		topics:    topics,
		searcher:  searcher,
		assembler: assembler,
		opts:      opts,
		metrics:   metrics,
		logger:    logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze runs all stages in order. The main node of the graph is titled
// with the upload's filename. Cancellation of ctx is observed at every stage
// boundary.
func (a *Analyzer) Analyze(ctx context.Context, upload Upload) (*domain.AnalysisResult, error) {
	logger := observability.WithAnalysisContext(
		observability.LoggerFromContext(ctx, a.logger),
		observability.RequestIDFromContext(ctx),
		upload.Filename,
	)
	start := time.Now()
	if a.metrics != nil {
		a.metrics.RecordAnalysisStarted(len(upload.Data))
	}

	result, err := a.run(ctx, upload, logger)
	if err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			if a.metrics != nil {
				a.metrics.RecordAnalysisFailed(stageErr.Stage.String(), string(stageErr.Kind), time.Since(start).Seconds())
			}
			stageLogger := observability.WithStageContext(logger, stageErr.Stage.String())
			event := stageLogger.Error()
			if stageErr.Kind == domain.KindValidation {
				event = stageLogger.Warn()
			}
			event.Err(stageErr.Cause).
				Str("kind", string(stageErr.Kind)).
				Msg(stageErr.Message)
		}
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordAnalysisCompleted(time.Since(start).Seconds())
	}
	logger.Info().
		Int("nodes", len(result.Graph.Nodes)).
		Int("related_papers", len(result.RelatedPapers)).
		Dur("duration", time.Since(start)).
		Msg("analysis completed")

	return result, nil
}

func (a *Analyzer) run(ctx context.Context, upload Upload, logger zerolog.Logger) (*domain.AnalysisResult, error) {
	// receive_file
	if err := a.enter(ctx, domain.StageReceiveFile); err != nil {
		return nil, err
	}
	if err := a.receive(upload); err != nil {
		return nil, err
	}

	// extract_text
	if err := a.enter(ctx, domain.StageExtractText); err != nil {
		return nil, err
	}
	stageStart := time.Now()
	extracted, err := a.text.Extract(ctx, upload.Data)
	if err != nil {
		return nil, classifyTextError(err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return nil, domain.NewStageError(domain.StageExtractText, domain.KindValidation,
			"extracted text is empty", domain.NewValidationError("file", "no text content"))
	}
	a.recordStage(domain.StageExtractText, stageStart)
	if a.metrics != nil {
		a.metrics.RecordTextExtracted(extracted.PagesRead, len([]rune(extracted.Text)))
	}
	textLogger := observability.WithStageContext(logger, domain.StageExtractText.String())
	textLogger.Debug().
		Int("pages", extracted.PagesRead).
		Int("pages_total", extracted.PagesTotal).
		Int("chars", len(extracted.Text)).
		Msg("text extracted")

	// extract_topics
	if err := a.enter(ctx, domain.StageExtractTopics); err != nil {
		return nil, err
	}
	stageStart = time.Now()
	topics, err := a.topics.ExtractTopics(ctx, extracted.Text)
	if err != nil {
		return nil, classifyTopicError(err)
	}
	a.recordStage(domain.StageExtractTopics, stageStart)
	topicsLogger := observability.WithStageContext(logger, domain.StageExtractTopics.String())
	topicsLogger.Debug().
		Int("topics", len(topics)).
		Int("subtopics", domain.SubtopicCount(topics)).
		Msg("topics extracted")

	// search_related
	if err := a.enter(ctx, domain.StageSearchRelated); err != nil {
		return nil, err
	}
	stageStart = time.Now()
	related := a.searcher.FindRelatedPapers(ctx, topics)
	if len(related) == 0 && a.opts.FailOnEmpty {
		return nil, domain.NewStageError(domain.StageSearchRelated, domain.KindExtraction,
			"no related papers found", nil)
	}
	a.recordStage(domain.StageSearchRelated, stageStart)

	// assemble_graph
	if err := a.enter(ctx, domain.StageAssembleGraph); err != nil {
		return nil, err
	}
	stageStart = time.Now()
	result, err := a.assembler.Assemble(upload.Filename, topics, related)
	if err != nil {
		return nil, classifyAssembleError(err)
	}
	a.recordStage(domain.StageAssembleGraph, stageStart)

	return result, nil
}

func (a *Analyzer) receive(upload Upload) error {
	if !strings.HasSuffix(upload.Filename, PDFSuffix) {
		return domain.NewStageError(domain.StageReceiveFile, domain.KindValidation,
			"only PDF files are supported", domain.NewValidationError("file", "filename must end in .pdf"))
	}
	if a.opts.MaxUploadBytes > 0 && int64(len(upload.Data)) > a.opts.MaxUploadBytes {
		return domain.NewStageError(domain.StageReceiveFile, domain.KindValidation,
			fmt.Sprintf("file exceeds the %d byte limit", a.opts.MaxUploadBytes), domain.ErrPayloadTooLarge)
	}
	if len(upload.Data) == 0 {
		return domain.NewStageError(domain.StageReceiveFile, domain.KindValidation,
			"uploaded file is empty", domain.NewValidationError("file", "empty upload"))
	}
	return nil
}

// enter fails with a StageError for stage when ctx is already done.
func (a *Analyzer) enter(ctx context.Context, stage domain.Stage) error {
	if err := ctx.Err(); err != nil {
		return cancelled(stage, err)
	}
	return nil
}

func (a *Analyzer) recordStage(stage domain.Stage, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStage(stage.String(), time.Since(start).Seconds())
	}
}

func cancelled(stage domain.Stage, err error) *domain.StageError {
	msg := "request cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return domain.NewStageError(stage, domain.KindUnexpected, msg, errors.Join(domain.ErrCancelled, err))
}

func classifyTextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cancelled(domain.StageExtractText, err)
	case errors.Is(err, pdf.ErrInvalidPDF):
		return domain.NewStageError(domain.StageExtractText, domain.KindValidation,
			"uploaded file is not a readable PDF", err)
	case errors.Is(err, pdf.ErrNoText):
		return domain.NewStageError(domain.StageExtractText, domain.KindExtraction,
			"no text could be extracted from the PDF", err)
	default:
		return domain.NewStageError(domain.StageExtractText, domain.KindUnexpected,
			"text extraction failed", err)
	}
}

// classifyTopicError checks ExtractionError before ValidationError because an
// extraction error wrapping a schema violation also matches ErrInvalidInput.
func classifyTopicError(err error) error {
	var extErr *domain.ExtractionError
	var valErr *domain.ValidationError
	switch {
	case errors.As(err, &extErr):
		return domain.NewStageError(domain.StageExtractTopics, domain.KindExtraction, extErr.Message, err)
	case errors.As(err, &valErr):
		return domain.NewStageError(domain.StageExtractTopics, domain.KindValidation, valErr.Message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cancelled(domain.StageExtractTopics, err)
	default:
		return domain.NewStageError(domain.StageExtractTopics, domain.KindUpstream,
			"topic service unavailable", err)
	}
}

// classifyAssembleError treats invalid topics as an extraction failure: they
// come from the oracle, not from the client.
func classifyAssembleError(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return domain.NewStageError(domain.StageAssembleGraph, domain.KindExtraction,
			"extracted topics are malformed", err)
	}
	return domain.NewStageError(domain.StageAssembleGraph, domain.KindUnexpected,
		"graph assembly failed", err)
}
