// Package usecase wires the adapters into the retrieval, indexing, and
// question-answering flows.
package usecase

import (
	"github.com/rs/zerolog"

	"localkb/internal/domain"
	"localkb/internal/task"
)

// SearchStore is the slice of the collection the retriever needs.
type SearchStore interface {
	Search(tok *task.Token, query string, topK int) ([]domain.SearchResult, error)
	Count() int
}

const (
	// DefaultTopK is the number of chunks handed to the orchestrator.
	DefaultTopK = 5
	// DefaultMinSimilarity drops results below this cosine similarity.
	DefaultMinSimilarity = 0.0
	// overFetchFactor widens the store query so post-filtering can still
	// fill topK slots.
	overFetchFactor = 2
)

// Retriever turns a question into the most relevant stored chunks.
type Retriever struct {
	store SearchStore
	log   zerolog.Logger
}

// NewRetriever creates a retriever over the given store.
func NewRetriever(store SearchStore, log zerolog.Logger) *Retriever {
	return &Retriever{
		store: store,
		log:   log.With().Str("component", "retriever").Logger(),
	}
}

// Retrieve fetches up to topK chunks whose similarity to the question is at
// least minSimilarity. An empty result is valid and simply means nothing
// relevant is indexed.
func (r *Retriever) Retrieve(tok *task.Token, question string, topK int, minSimilarity float64) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := r.store.Search(tok, question, topK*overFetchFactor)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Similarity() >= minSimilarity {
			filtered = append(filtered, res)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	r.log.Debug().
		Int("requested", topK).
		Int("returned", len(filtered)).
		Float64("min_similarity", minSimilarity).
		Msg("retrieval complete")
	return filtered, nil
}
