package domain

// NodeCategory tags a graph node with its tier.
type NodeCategory string

const (
	CategoryMain     NodeCategory = "main"
	CategoryTopic    NodeCategory = "topic"
	CategorySubtopic NodeCategory = "subtopic"
)

// GraphNode is a vertex of the knowledge graph.
type GraphNode struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"name"`
	Weight      float64      `json:"val"`
	Category    NodeCategory `json:"group"`
}

// GraphEdge is a directed edge between two node ids.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"value"`
}

// Graph holds the nodes and edges of a paper's knowledge graph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphEdge `json:"links"`
}

// AnalysisResult is the successful outcome of analyzing one paper.
type AnalysisResult struct {
	Graph         Graph          `json:"graph"`
	RelatedPapers []RelatedPaper `json:"relatedPapers"`
}
