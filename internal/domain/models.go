// Package domain provides domain models and error types for the paper graph service.
package domain

// SourceType represents the search provider that produced a related paper.
type SourceType string

const (
	SourceTypeArXiv SourceType = "arxiv"
)

// Stage identifies one sequential step of the analysis pipeline.
type Stage string

const (
	StageReceiveFile   Stage = "receive_file"
	StageExtractText   Stage = "extract_text"
	StageExtractTopics Stage = "extract_topics"
	StageSearchRelated Stage = "search_related"
	StageAssembleGraph Stage = "assemble_graph"
	StageRespond       Stage = "respond"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{
	StageReceiveFile,
	StageExtractText,
	StageExtractTopics,
	StageSearchRelated,
	StageAssembleGraph,
	StageRespond,
}

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}
