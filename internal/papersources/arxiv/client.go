// Package arxiv implements the related-work search provider backed by the
// arXiv Atom query API.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-graph-service/internal/domain"
	"github.com/helixir/paper-graph-service/internal/observability"
	"github.com/helixir/paper-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "http://export.arxiv.org/api"

	// DefaultTimeout bounds one query.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxResults is the number of entries requested per query.
	DefaultMaxResults = 3

	sourceName = "arxiv"
	endpoint   = "query"

	maxBodyBytes = 10 << 20
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the number of entries requested per query.
	MaxResults int

	// MaxRetries is the number of retries on 429 and 5xx responses.
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.PaperSource for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
	})

	return NewWithHTTPClient(cfg, httpClient, metrics, logger)
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger.With().Str("component", "arxiv").Logger(),
	}
}

// Search queries arXiv and converts the returned entries to related papers
// tagged with params.Query. Entries are kept in feed order.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.recordFailure(nil)
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&feed); err != nil {
		if c.metrics != nil {
			c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "decode")
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.RelatedPaper, 0, len(feed.Entries))
	skipped := 0
	for i := range feed.Entries {
		paper, ok := entryToPaper(&feed.Entries[i], params.Query)
		if !ok {
			skipped++
			continue
		}
		papers = append(papers, paper)
	}

	duration := time.Since(startTime)
	if c.metrics != nil {
		c.metrics.RecordSourceRequest(sourceName, endpoint, duration.Seconds())
		c.metrics.RecordEntriesSkipped(sourceName, skipped)
	}
	if skipped > 0 {
		c.logger.Warn().
			Str("query", params.Query).
			Int("skipped", skipped).
			Msg("skipped malformed arxiv entries")
	}

	return &papersources.SearchResult{
		Papers:         papers,
		Skipped:        skipped,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: duration,
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "arXiv"
}

func (c *Client) recordFailure(err error) {
	if c.metrics == nil {
		return
	}
	var rlErr *domain.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		c.metrics.RecordSourceRateLimited(sourceName)
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "rate_limit")
	case errors.Is(err, context.DeadlineExceeded):
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "timeout")
	case errors.Is(err, context.Canceled):
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "cancelled")
	case err == nil:
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "status")
	default:
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, "network")
	}
}

// buildSearchURL constructs the query URL. The search string is matched
// against all fields and always starts from the first result.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("search_query", "all:"+params.Query)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToPaper converts an Atom entry. Absent fields become sentinel values;
// an id or title that is present but blank marks the entry as malformed.
func entryToPaper(entry *Entry, query string) (domain.RelatedPaper, bool) {
	paper := domain.RelatedPaper{
		ID:        domain.IDNotFound,
		Title:     domain.TitleNotFound,
		Summary:   domain.SummaryNotFound,
		Published: domain.DateNotAvailable,
		Authors:   make([]string, 0, len(entry.Authors)),
		Topic:     query,
	}

	if entry.ID != nil {
		id := extractArXivID(*entry.ID)
		if id == "" {
			return domain.RelatedPaper{}, false
		}
		paper.ID = id
	}

	if entry.Title != nil {
		title := normalizeWhitespace(*entry.Title)
		if title == "" {
			return domain.RelatedPaper{}, false
		}
		paper.Title = title
	}

	if entry.Summary != nil {
		if summary := normalizeWhitespace(*entry.Summary); summary != "" {
			paper.Summary = summary
		}
	}

	if entry.Published != nil {
		date, _, _ := strings.Cut(strings.TrimSpace(*entry.Published), "T")
		if date != "" {
			paper.Published = date
		}
	}

	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	return paper, true
}

// extractArXivID returns the last path segment of the entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" yields "2301.12345v1".
func extractArXivID(entryURL string) string {
	s := strings.TrimRight(strings.TrimSpace(entryURL), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
