package db

import "github.com/kailas-cloud/invoicedex/internal/domain/filter"

// KNNQuery is the input for FT.SEARCH vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is similarity in [0, 1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// PointRecord is a row in a PointTable collection.
type PointRecord struct {
	ID      string
	Vector  []float32
	Payload []byte
	Tags    map[string]string
	Numbers map[string]float64
}

// PointQuery is the input for PointTable.QueryPoints.
type PointQuery struct {
	Vector  []float32
	K       int
	Filters filter.Expression
}

// ScoredRecord is a PointTable hit. Score is cosine similarity.
type ScoredRecord struct {
	ID      string
	Score   float64
	Payload []byte
}
