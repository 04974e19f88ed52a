// Package pdf extracts plain text from uploaded PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"rsc.io/pdf"
)

// DefaultMaxPages is the number of leading pages read from a document.
const DefaultMaxPages = 10

// Sentinel errors for PDF extraction.
var (
	// ErrInvalidPDF is returned when the bytes cannot be parsed as a PDF.
	ErrInvalidPDF = errors.New("pdf: invalid document")
	// ErrNoText is returned when none of the examined pages yields text.
	ErrNoText = errors.New("pdf: no extractable text")
)

// Result is the text of a document together with the pages that produced it.
type Result struct {
	Text string
	// PagesRead is the number of pages examined.
	PagesRead int
	// PagesTotal is the number of pages in the document.
	PagesTotal int
	// PagesSkipped counts pages whose content stream could not be decoded.
	PagesSkipped int
}

// Extractor reads text from the first MaxPages pages of a PDF.
// It is stateless and safe for concurrent use.
type Extractor struct {
	maxPages int
	logger   zerolog.Logger
}

// NewExtractor creates an Extractor. A non-positive maxPages uses DefaultMaxPages.
func NewExtractor(maxPages int, logger zerolog.Logger) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{
		maxPages: maxPages,
		logger:   logger.With().Str("component", "pdf-extractor").Logger(),
	}
}

// Extract parses data and collects text from up to maxPages pages.
// Pages that fail to decode are logged and skipped.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	reader, err := openReader(data)
	if err != nil {
		return nil, err
	}

	total, err := numPages(reader)
	if err != nil {
		return nil, err
	}

	limit := min(total, e.maxPages)
	res := &Result{PagesTotal: total}
	pages := make([]string, 0, limit)

	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.PagesRead++

		text, err := pageText(reader, i)
		if err != nil {
			res.PagesSkipped++
			e.logger.Warn().Err(err).Int("page", i).Msg("skipping unreadable page")
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	res.Text = strings.Join(pages, "\n")
	if strings.TrimSpace(res.Text) == "" {
		return nil, ErrNoText
	}

	e.logger.Debug().
		Int("pages_read", res.PagesRead).
		Int("pages_total", res.PagesTotal).
		Int("pages_skipped", res.PagesSkipped).
		Int("chars", len(res.Text)).
		Msg("extracted text")

	return res, nil
}

// openReader wraps pdf.NewReader, which panics on some malformed inputs.
func openReader(data []byte) (r *pdf.Reader, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPDF)
	}
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, p)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return r, nil
}

func numPages(r *pdf.Reader) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, fmt.Errorf("%w: page tree: %v", ErrInvalidPDF, p)
		}
	}()
	return r.NumPage(), nil
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("page %d: %v", num, p)
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", num)
	}
	return joinText(page.Content().Text), nil
}

// joinText lays out positioned glyph runs as lines of text. A change in
// baseline starts a new line; a horizontal gap wider than a fraction of the
// font size inserts a space.
func joinText(runs []pdf.Text) string {
	var b strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			size := math.Max(prev.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > size*0.5:
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > size*0.15:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimRight(l, " \t"); strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
