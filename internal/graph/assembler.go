// Package graph builds the knowledge graph returned for an analyzed paper.
//
// The graph has three tiers: a single main node for the paper, one node per
// topic linked from the main node and one node per subtopic linked from its
// topic. Node sizes and edge strengths are derived from importance scores.
package graph

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-graph-service/internal/domain"
)

const (
	// MainNodeID is the id of the node representing the analyzed paper.
	MainNodeID = "main"

	// MainNodeWeight is the display weight of the main node.
	MainNodeWeight = 20

	// DefaultMaxTitleLength is the rune count above which the title is cut.
	DefaultMaxTitleLength = 50

	ellipsis = "..."
)

// Assembler builds graphs. It holds no per-call state and is safe for
// concurrent use.
type Assembler struct {
	maxTitleLength int
	logger         zerolog.Logger
}

// NewAssembler creates an Assembler. A non-positive maxTitleLength uses
// DefaultMaxTitleLength.
func NewAssembler(maxTitleLength int, logger zerolog.Logger) *Assembler {
	if maxTitleLength <= 0 {
		maxTitleLength = DefaultMaxTitleLength
	}
	return &Assembler{
		maxTitleLength: maxTitleLength,
		logger:         logger.With().Str("component", "graph_assembler").Logger(),
	}
}

// Assemble builds the analysis result for a paper. Topics are validated
// first; a blank name or an out-of-range importance yields a
// *domain.ValidationError. Related papers are passed through unchanged.
//
// Node ids are "topic_<name>" and "subtopic_<topic id>_<name>". When two
// nodes would share an id the later one gets a "~N" suffix (N = 2, 3, ...)
// so that no node is overwritten.
func (a *Assembler) Assemble(title string, topics []domain.Topic, related []domain.RelatedPaper) (*domain.AnalysisResult, error) {
	if err := domain.ValidateTopics(topics); err != nil {
		return nil, err
	}

	nodeCount := 1 + len(topics) + domain.SubtopicCount(topics)
	nodes := make([]domain.GraphNode, 0, nodeCount)
	links := make([]domain.GraphEdge, 0, nodeCount-1)
	ids := newIDSet()

	nodes = append(nodes, domain.GraphNode{
		ID:          ids.claim(MainNodeID),
		DisplayName: TruncateTitle(title, a.maxTitleLength),
		Weight:      MainNodeWeight,
		Category:    domain.CategoryMain,
	})

	for _, t := range topics {
		topicID := ids.claim("topic_" + t.Name)
		nodes = append(nodes, domain.GraphNode{
			ID:          topicID,
			DisplayName: t.Name,
			Weight:      float64(t.Importance * 2),
			Category:    domain.CategoryTopic,
		})
		links = append(links, domain.GraphEdge{
			Source: MainNodeID,
			Target: topicID,
			Weight: float64(t.Importance),
		})

		for _, st := range t.Subtopics {
			subtopicID := ids.claim("subtopic_" + topicID + "_" + st.Name)
			nodes = append(nodes, domain.GraphNode{
				ID:          subtopicID,
				DisplayName: st.Name,
				Weight:      float64(st.Importance),
				Category:    domain.CategorySubtopic,
			})
			links = append(links, domain.GraphEdge{
				Source: topicID,
				Target: subtopicID,
				Weight: float64(st.Importance),
			})
		}
	}

	if related == nil {
		related = []domain.RelatedPaper{}
	}

	a.logger.Debug().
		Int("nodes", len(nodes)).
		Int("links", len(links)).
		Int("related_papers", len(related)).
		Msg("graph assembled")

	return &domain.AnalysisResult{
		Graph: domain.Graph{
			Nodes: nodes,
			Links: links,
		},
		RelatedPapers: related,
	}, nil
}

// TruncateTitle cuts title to max runes and appends "..." when it is longer.
func TruncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + ellipsis
}

type idSet map[string]struct{}

func newIDSet() idSet {
	return make(idSet)
}

// claim returns id if unused, otherwise the first free "id~N" with N >= 2.
func (s idSet) claim(id string) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := s[candidate]; !taken {
			s[candidate] = struct{}{}
			return candidate
		}
		candidate = id + "~" + strconv.Itoa(n)
	}
}
