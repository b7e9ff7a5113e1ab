package semantic

// SearchResult is a single vector search hit over debate-text chunks.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	UID     string            `json:"uid"`
	Subtype string            `json:"subtype"`
	Meta    map[string]string `json:"meta"`
}

// VectorRecord is one debate-text chunk to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, uid, subtype, chunk_index, chamber
}
