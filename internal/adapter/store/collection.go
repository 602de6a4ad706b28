// Package store owns the persistent vector collection: chunk rows, their
// embedding vectors, and the collection metadata that pins the embedding
// model and dimension.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"localkb/internal/adapter/chunker"
	"localkb/internal/domain"
	"localkb/internal/port"
	"localkb/internal/task"
)

var (
	bucketMeta    = []byte("meta")
	bucketChunks  = []byte("chunks")
	bucketVectors = []byte("vectors")
	keyInfo       = []byte("info")
)

// collectionMeta records the embedding model and dimension at creation time;
// the dimension is immutable for the life of the persisted data.
type collectionMeta struct {
	Name      string             `json:"name"`
	Model     string             `json:"model"`
	Dimension int                `json:"dimension"`
	Status    domain.IndexStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

type chunkRow struct {
	Text string               `json:"text"`
	Meta domain.ChunkMetadata `json:"meta"`
}

type vectorRow struct {
	Vector   []float32 `json:"v"`
	Fallback bool      `json:"fb,omitempty"`
}

type cacheEntry struct {
	vector []float32
	docID  string
}

// Collection is the persistent, named store of (chunk, vector, metadata)
// rows. Vectors are mirrored in memory for brute-force search; the cache is
// guarded by mu.
type Collection struct {
	db       *bbolt.DB
	path     string
	embedder port.Embedder
	splitter *chunker.Splitter
	log      zerolog.Logger

	mu    sync.RWMutex
	meta  collectionMeta
	cache map[string]cacheEntry
}

// Open opens or creates the named collection at dir. If the stored dimension
// disagrees with the active embedding model, the collection is dropped and
// recreated: prior vectors are discarded, since mixed dimensions are not
// representable.
func Open(dir, name string, embedder port.Embedder, splitter *chunker.Splitter, log zerolog.Logger) (*Collection, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.WrapError(domain.CodeStoreFailed, "cannot create storage dir "+dir, err)
	}

	path := filepath.Join(dir, name+".db")
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, domain.WrapError(domain.CodeStoreFailed, "cannot open collection "+path, err)
	}

	c := &Collection{
		db:       db,
		path:     path,
		embedder: embedder,
		splitter: splitter,
		log:      log.With().Str("component", "collection").Str("collection", name).Logger(),
		cache:    make(map[string]cacheEntry),
	}

	if err := c.ensureBuckets(); err != nil {
		db.Close()
		return nil, err
	}

	existing, err := c.loadMeta()
	if err != nil {
		db.Close()
		return nil, err
	}

	dim, err := embedder.Dimension()
	if err != nil {
		db.Close()
		return nil, domain.WrapError(domain.CodeDimensionMismatch,
			"cannot resolve dimension for model "+embedder.ModelName(), err)
	}

	if existing == nil {
		c.meta = collectionMeta{
			Name:      name,
			Model:     embedder.ModelName(),
			Dimension: dim,
			Status:    domain.IndexNotCreated,
			CreatedAt: time.Now(),
		}
		if err := c.saveMeta(); err != nil {
			db.Close()
			return nil, err
		}
		return c, nil
	}

	c.meta = *existing
	if err := c.loadVectors(); err != nil {
		db.Close()
		return nil, err
	}

	// Compare the live probe dimension against one stored vector. A mismatch
	// means the active model changed; the only representable recovery is a
	// destructive recreation.
	if stored, ok := c.sampleDimension(); ok && stored != dim {
		c.log.Warn().
			Int("stored_dimension", stored).
			Int("model_dimension", dim).
			Str("model", embedder.ModelName()).
			Msg("embedding dimension changed, dropping and recreating collection")
		if err := c.recreate(embedder.ModelName(), dim); err != nil {
			db.Close()
			return nil, err
		}
	} else if c.meta.Dimension != dim || c.meta.Model != embedder.ModelName() {
		// Empty collection: just retag the metadata.
		c.meta.Model = embedder.ModelName()
		c.meta.Dimension = dim
		if err := c.saveMeta(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return c, nil
}

// Close closes the underlying database.
func (c *Collection) Close() error {
	return c.db.Close()
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.meta.Name }

// Path returns the database file path.
func (c *Collection) Path() string { return c.path }

// Model returns the embedding model recorded at creation.
func (c *Collection) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Model
}

// Dimension returns the collection's pinned vector length.
func (c *Collection) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Dimension
}

// Status returns the collection's index status.
func (c *Collection) Status() domain.IndexStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Status
}

// SetStatus persists an index status transition.
func (c *Collection) SetStatus(status domain.IndexStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.Status = status
	return c.saveMetaLocked()
}

// Count returns the number of stored chunk rows.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// DocumentCount returns the number of distinct documents with stored rows.
func (c *Collection) DocumentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make(map[string]struct{}, len(c.cache))
	for _, e := range c.cache {
		docs[e.docID] = struct{}{}
	}
	return len(docs)
}

// Insert splits the document, embeds its chunks, and writes one row per
// chunk under the composite id {document_id}_{index}.
func (c *Collection) Insert(tok *task.Token, doc domain.Document) error {
	if tok != nil {
		if err := tok.Check(); err != nil {
			return err
		}
	}

	chunks, err := c.splitter.Chunks(doc)
	if err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	result, err := c.embedder.Embed(tok, texts)
	if err != nil {
		return err
	}
	if len(result.Vectors) != len(chunks) {
		return domain.NewError(domain.CodeStoreFailed,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(result.Vectors), len(chunks)),
			map[string]any{"document_id": doc.ID})
	}

	if tok != nil {
		if err := tok.Check(); err != nil {
			return err
		}
	}

	if err := c.checkDimension(result.Vectors); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		vectorBucket := tx.Bucket(bucketVectors)

		for i, ch := range chunks {
			row := chunkRow{
				Text: ch.Text,
				Meta: domain.ChunkMetadata{
					Filename:   doc.Title,
					Path:       doc.Path,
					FileType:   doc.Type.String(),
					FileSize:   doc.Size,
					ChunkIndex: ch.Index,
					DocumentID: doc.ID,
					CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
					Fallback:   result.Fallback,
				},
			}
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(ch.ChunkID()), data); err != nil {
				return err
			}

			vdata, err := json.Marshal(vectorRow{Vector: result.Vectors[i], Fallback: result.Fallback})
			if err != nil {
				return err
			}
			if err := vectorBucket.Put([]byte(ch.ChunkID()), vdata); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to write rows for document "+doc.ID, err)
	}

	for i, ch := range chunks {
		c.cache[ch.ChunkID()] = cacheEntry{vector: result.Vectors[i], docID: doc.ID}
	}

	c.log.Info().
		Str("document_id", doc.ID).
		Str("filename", doc.Title).
		Int("chunks", len(chunks)).
		Bool("fallback_vectors", result.Fallback).
		Msg("document indexed")
	return nil
}

// checkDimension enforces the collection-wide dimension invariant. An empty
// collection adopts the incoming dimension (this covers degraded fallback
// vectors); a populated one rejects mismatches since recreation would not
// resolve them.
func (c *Collection) checkDimension(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return domain.NewError(domain.CodeDimensionMismatch,
				"embedding batch contains mixed vector lengths",
				map[string]any{"expected": dim, "actual": len(v)})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) == 0 {
		if c.meta.Dimension != dim {
			c.meta.Dimension = dim
			return c.saveMetaLocked()
		}
		return nil
	}

	if stored, ok := c.sampleDimensionLocked(); ok && stored != dim {
		return domain.NewError(domain.CodeDimensionMismatch,
			"vector dimension incompatible with stored collection data",
			map[string]any{
				"model":    c.meta.Model,
				"expected": stored,
				"actual":   dim,
			})
	}
	return nil
}

// Delete removes every row whose metadata references the document id.
func (c *Collection) Delete(documentID string) error {
	ids := c.chunkIDsFor(documentID)
	if len(ids) == 0 {
		return domain.NewError(domain.CodeDocumentNotFound,
			"no indexed chunks for document "+documentID,
			map[string]any{"document_id": documentID})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		vectorBucket := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := chunkBucket.Delete([]byte(id)); err != nil {
				return err
			}
			if err := vectorBucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to delete rows for document "+documentID, err)
	}

	for _, id := range ids {
		delete(c.cache, id)
	}

	c.log.Info().Str("document_id", documentID).Int("chunks", len(ids)).Msg("document removed")
	return nil
}

// Update replaces a document's rows under the same identifier. Implemented
// as delete-then-insert; the two steps are not atomic.
func (c *Collection) Update(tok *task.Token, documentID string, doc domain.Document) error {
	if err := c.Delete(documentID); err != nil {
		return err
	}
	doc.ID = documentID
	doc.UpdatedAt = time.Now()
	return c.Insert(tok, doc)
}

// Clear removes all rows. It first attempts a bulk delete by explicit id
// enumeration; on any failure it drops and recreates the collection under
// the same name and metadata. Either path ends empty. Clearing resets the
// index status to not_created.
func (c *Collection) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.cache))
	for id := range c.cache {
		ids = append(ids, id)
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		vectorBucket := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := chunkBucket.Delete([]byte(id)); err != nil {
				return err
			}
			if err := vectorBucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("bulk delete failed, recreating collection")
		if err := c.recreateLocked(c.meta.Model, c.meta.Dimension); err != nil {
			return err
		}
	} else {
		c.cache = make(map[string]cacheEntry)
	}

	c.meta.Status = domain.IndexNotCreated
	if err := c.saveMetaLocked(); err != nil {
		return err
	}

	c.log.Info().Int("rows_removed", len(ids)).Msg("collection cleared")
	return nil
}

// Search embeds the query and returns the topK nearest rows by vector
// distance, ascending (smaller is more similar).
func (c *Collection) Search(tok *task.Token, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}

	result, err := c.embedder.Embed(tok, []string{query})
	if err != nil {
		return nil, err
	}
	if len(result.Vectors) == 0 {
		return nil, domain.NewError(domain.CodeStoreFailed, "query embedding returned no vector", nil)
	}
	queryVec := result.Vectors[0]

	c.mu.RLock()
	type scored struct {
		id       string
		distance float64
	}
	scores := make([]scored, 0, len(c.cache))
	for id, entry := range c.cache {
		if len(entry.vector) != len(queryVec) {
			continue
		}
		scores = append(scores, scored{id: id, distance: 1.0 - cosineSimilarity(queryVec, entry.vector)})
	}
	c.mu.RUnlock()

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].distance == scores[j].distance {
			return scores[i].id < scores[j].id
		}
		return scores[i].distance < scores[j].distance
	})
	if topK < len(scores) {
		scores = scores[:topK]
	}

	results := make([]domain.SearchResult, 0, len(scores))
	err = c.db.View(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		for _, s := range scores {
			data := chunkBucket.Get([]byte(s.id))
			if data == nil {
				continue
			}
			var row chunkRow
			if err := json.Unmarshal(data, &row); err != nil {
				continue
			}
			results = append(results, domain.SearchResult{
				Content:  row.Text,
				Metadata: row.Meta,
				Distance: s.distance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeStoreFailed, "search read failed", err)
	}

	return results, nil
}

// chunkIDsFor collects the ids of all rows referencing a document.
func (c *Collection) chunkIDsFor(documentID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for id, e := range c.cache {
		if e.docID == documentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (c *Collection) ensureBuckets() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketChunks, bucketVectors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to initialize collection buckets", err)
	}
	return nil
}

func (c *Collection) loadMeta() (*collectionMeta, error) {
	var meta *collectionMeta
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyInfo)
		if data == nil {
			return nil
		}
		var m collectionMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		meta = &m
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeStoreFailed, "failed to read collection metadata", err)
	}
	return meta, nil
}

func (c *Collection) saveMeta() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveMetaLocked()
}

func (c *Collection) saveMetaLocked() error {
	data, err := json.Marshal(c.meta)
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to marshal collection metadata", err)
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyInfo, data)
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to write collection metadata", err)
	}
	return nil
}

// loadVectors mirrors all stored vectors into memory for search.
func (c *Collection) loadVectors() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.View(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var row vectorRow
			if err := json.Unmarshal(v, &row); err != nil {
				return nil // skip corrupted entries
			}
			docID := ""
			if data := chunkBucket.Get(k); data != nil {
				var cr chunkRow
				if err := json.Unmarshal(data, &cr); err == nil {
					docID = cr.Meta.DocumentID
				}
			}
			c.cache[string(k)] = cacheEntry{vector: row.Vector, docID: docID}
			return nil
		})
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to load vectors", err)
	}
	return nil
}

// sampleDimension returns the length of one stored vector, if any.
func (c *Collection) sampleDimension() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sampleDimensionLocked()
}

func (c *Collection) sampleDimensionLocked() (int, bool) {
	for _, e := range c.cache {
		return len(e.vector), true
	}
	return 0, false
}

// recreate drops all buckets and rebuilds the collection tagged with the
// given model and dimension. All prior vectors are discarded.
func (c *Collection) recreate(model string, dimension int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recreateLocked(model, dimension)
}

func (c *Collection) recreateLocked(model string, dimension int) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketVectors} {
			if err := tx.DeleteBucket(b); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.CodeStoreFailed, "failed to recreate collection", err)
	}

	c.cache = make(map[string]cacheEntry)
	c.meta.Model = model
	c.meta.Dimension = dimension
	c.meta.Status = domain.IndexNotCreated
	c.meta.CreatedAt = time.Now()
	return c.saveMetaLocked()
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors; zero vectors yield zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
