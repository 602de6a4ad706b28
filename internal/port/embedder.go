package port

import "localkb/internal/task"

// EmbedResult carries the vectors for one embed call. Fallback is true when
// the vectors came from the degraded local pseudo-embedding instead of the
// remote model.
type EmbedResult struct {
	Vectors  [][]float32
	Fallback bool
}

// Embedder turns texts into fixed-length vectors, one per input,
// order-preserving.
type Embedder interface {
	// Embed generates embeddings for the given texts, checking tok between
	// sub-batches. tok may be nil.
	Embed(tok *task.Token, texts []string) (EmbedResult, error)

	// Dimension returns the vector length the active model produces. Known
	// models resolve from a static table; unknown models are probed live.
	Dimension() (int, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
