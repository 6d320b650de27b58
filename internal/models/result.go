package models

// SearchResult is one retrieved chunk. Position is the chunk's slot in the store.
type SearchResult struct {
	Position int           `json:"position"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// SearchResponse is the outcome of a tiered retrieval. Tier is the 0-based
// tier that produced Results, or -1 when every tier came back empty.
type SearchResponse struct {
	Query         string          `json:"query"`
	ExpandedQuery string          `json:"expanded_query,omitempty"`
	Results       []*SearchResult `json:"results"`
	Tier          int             `json:"tier"`
	Threshold     float64         `json:"threshold"`
	Confident     bool            `json:"confident"`
	QueryTime     int64           `json:"query_time_ms"`
}

// Stats reports store size. TotalDocuments counts stored chunks and always
// equals IndexSize.
type Stats struct {
	TotalDocuments int `json:"total_documents"`
	IndexSize      int `json:"index_size"`
	Dimension      int `json:"dimension"`
}

// KeywordHit is one keyword lookup match.
type KeywordHit struct {
	Position int           `json:"position"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// Answer is a composed reply to a question.
type Answer struct {
	Question  string          `json:"question"`
	Text      string          `json:"answer"`
	Sources   []string        `json:"sources"`
	Chunks    []*SearchResult `json:"chunks"`
	Mode      string          `json:"mode"`
	Category  string          `json:"category"`
	Tier      int             `json:"tier"`
	Confident bool            `json:"confident"`
	LowScore  bool            `json:"low_score"`
	QueryTime int64           `json:"query_time_ms"`
}
