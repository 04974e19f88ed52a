package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/paper-graph-service/internal/analysis"
	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/observability"
)

// uploadField is the multipart field carrying the PDF.
const uploadField = "file"

// multipartOverhead is the body allowance for multipart framing on top of
// the file size limit.
const multipartOverhead = 64 << 10

// analyzePaper handles POST /analyze-paper. It accepts a multipart upload,
// rejects non-PDF and oversized files before any processing and returns the
// knowledge graph with related papers.
func (s *Server) analyzePaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, s.logger)
	maxBytes := s.config.MaxUploadBytes

	if r.ContentLength > maxBytes+multipartOverhead {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "a PDF file is required in the \"file\" field")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart upload")
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if !strings.HasSuffix(header.Filename, analysis.PDFSuffix) {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}
	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		logger.Error().Err(err).Msg("failed to read upload")
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(maxBytes))
		return
	}

	result, err := s.analyzer.Analyze(ctx, analysis.Upload{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	writeJSON(w, http.StatusOK, result)
	if s.metrics != nil {
		s.metrics.RecordStage(domain.StageRespond.String(), time.Since(start).Seconds())
	}
}
