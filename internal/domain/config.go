package domain

// KeyPrefix namespaces every key written by the service.
const KeyPrefix = "invoicedex:"

// CollectionName is the single point collection of the system.
const CollectionName = "invoices"

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the defaults tuned for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-3-small",
		Dimensions:     1536,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}

// DefaultExtractionModel is used when no model is configured.
const DefaultExtractionModel = "gpt-4o-mini"
