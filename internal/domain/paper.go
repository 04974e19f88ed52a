package domain

// Placeholder values used when a search result omits a field entirely.
const (
	TitleNotFound    = "title not found"
	SummaryNotFound  = "no abstract available"
	DateNotAvailable = "date not available"
	IDNotFound       = "id not found"
)

// RelatedPaper is one search hit associated with the topic or subtopic that
// produced it. Every field is a non-empty string; absent source fields carry
// the placeholder constants above.
type RelatedPaper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
	Authors   []string `json:"authors"`
	Topic     string   `json:"topic"`
}
