// Package embedding generates vector embeddings through a local Ollama
// endpoint, with a deterministic degraded fallback when the endpoint is
// unavailable.
package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"localkb/internal/port"
	"localkb/internal/task"
)

const (
	// batchThreshold is the request size above which inputs are split.
	batchThreshold = 100
	// batchSize is the fixed sub-batch size for large requests.
	batchSize = 50
	// FallbackDimension is the vector length of the local pseudo-embedding.
	FallbackDimension = 384
)

// knownDimensions maps embedding models to their vector lengths. Unknown
// models are probed with a live one-text call.
var knownDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaEmbedder generates embeddings via the Ollama native embed API.
//
// On remote failure it does not propagate the error: it logs a warning and
// substitutes deterministic hash-derived vectors so indexing proceeds in
// degraded mode. The fallback is flagged on the result.
type OllamaEmbedder struct {
	model   string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder for the given model. An empty
// baseURL defaults to the local Ollama endpoint.
func NewOllamaEmbedder(model, baseURL string, log zerolog.Logger) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log.With().Str("component", "embedding").Str("model", model).Logger(),
	}
}

// ModelName returns the embedding model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Embed generates one vector per input text, order-preserving. Requests
// larger than the batch threshold are issued in fixed-size sub-batches, one
// at a time, with a cancellation check between batches.
func (e *OllamaEmbedder) Embed(tok *task.Token, texts []string) (port.EmbedResult, error) {
	if len(texts) == 0 {
		return port.EmbedResult{}, nil
	}

	size := len(texts)
	if len(texts) > batchThreshold {
		size = batchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += size {
		if tok != nil {
			if err := tok.Check(); err != nil {
				return port.EmbedResult{}, err
			}
		}

		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(texts[i:end])
		if err != nil {
			e.log.Warn().Err(err).Int("texts", len(texts)).
				Msg("remote embedding failed, using local fallback vectors")
			return port.EmbedResult{Vectors: fallbackVectors(texts), Fallback: true}, nil
		}
		vectors = append(vectors, batch...)
	}

	return port.EmbedResult{Vectors: vectors}, nil
}

func (e *OllamaEmbedder) embedBatch(texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	resp, err := e.client.Post(e.baseURL+"/api/embed", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed endpoint returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed endpoint returned %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Dimension resolves the model's vector length from the static table,
// falling back to a live one-text probe for unknown models.
func (e *OllamaEmbedder) Dimension() (int, error) {
	if dim, ok := knownDimensions[e.model]; ok {
		return dim, nil
	}

	vectors, err := e.embedBatch([]string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("dimension probe failed for model %s: %w", e.model, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("dimension probe returned no vector for model %s", e.model)
	}
	return len(vectors[0]), nil
}

// CheckConnection reports whether the embedding endpoint is reachable.
func (e *OllamaEmbedder) CheckConnection() bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(e.baseURL + "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fallbackVectors builds deterministic low-quality pseudo-embeddings from a
// hash of each text. Availability over accuracy: indexing proceeds in
// degraded mode rather than halting.
func fallbackVectors(texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = FallbackVector(text)
	}
	return vectors
}

// FallbackVector derives a deterministic pseudo-embedding for one text.
func FallbackVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, FallbackDimension)
	for j := range vec {
		// xorshift over the text hash; stable across runs and platforms.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[j] = float32(seed%2000)/1000.0 - 1.0
	}
	return vec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
