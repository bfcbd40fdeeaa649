package semantic

// Document types stored in the vector collection. Entry documents carry a
// listing's own text; category intro documents carry the general evaluation
// guidance for a body of entries.
const (
	DocTypeEntry         = "entry"
	DocTypeCategoryIntro = "category_intro"
)

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID        string  `json:"id"`
	Score     float32 `json:"score"`
	EntryID   string  `json:"entry_id"`
	DocType   string  `json:"doc_type"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	Content   string  `json:"content"`
	SourceURL string  `json:"source_url"`
	Position  int     `json:"position"`
}

// VectorRecord is a single embedded document to store.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // entry_id, doc_type, title, category, content, source_url, position
}
