package arxiv

import "encoding/xml"

// Feed represents the Atom XML response from the arXiv query API.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	ItemsPerPage int      `xml:"itemsPerPage"`
	Entries      []Entry  `xml:"entry"`
}

// Entry represents a single paper in the Atom feed. Text fields are pointers
// so an absent element can be told apart from an empty one.
type Entry struct {
	ID        *string  `xml:"id"`        // "http://arxiv.org/abs/2301.12345v1"
	Title     *string  `xml:"title"`
	Summary   *string  `xml:"summary"`   // abstract
	Published *string  `xml:"published"` // "2023-01-15T18:30:00Z"
	Authors   []Author `xml:"author"`
}

// Author represents a paper author in the Atom feed.
type Author struct {
	Name string `xml:"name"`
}
