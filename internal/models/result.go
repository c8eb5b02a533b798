package models

// SearchResult is a single retrieval hit. Score is the fused score in hybrid
// mode, the similarity score in vector mode, and the keyword relevance score
// in keyword mode. VectorScore and KeywordScore carry the per-channel values
// when that channel produced the document.
type SearchResult struct {
	Document     *Document `json:"document"`
	Score        float64   `json:"score"`
	VectorScore  float64   `json:"vector_score,omitempty"`
	KeywordScore float64   `json:"keyword_score,omitempty"`
	Rank         int       `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	Mode      string          `json:"mode"`
}
