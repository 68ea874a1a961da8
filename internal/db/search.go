package db

// KNNQuery is the input for vector similarity search over an index whose
// vector field is aliased "vector".
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Distance is the server's cosine
// distance in [0, 2]; lower is closer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
