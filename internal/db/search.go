package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchEntry is one hit returned by FT.SEARCH. Score carries the raw
// distance reported by the index; converting it to a similarity is the
// repository's concern.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is the parsed FT.SEARCH response.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}
