package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileType is the closed set of document formats the reader can extract.
type FileType int

const (
	FileTypePDF FileType = iota
	FileTypeText
	FileTypeMarkdown
	FileTypeRichText
)

// ParseFileType maps a file extension to its format tag.
func ParseFileType(path string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".txt", ".text":
		return FileTypeText, nil
	case ".md", ".markdown":
		return FileTypeMarkdown, nil
	case ".docx":
		return FileTypeRichText, nil
	default:
		return 0, NewError(CodeUnsupportedFormat, fmt.Sprintf("unsupported file format: %q", filepath.Ext(path)),
			map[string]any{"path": path})
	}
}

func (t FileType) String() string {
	switch t {
	case FileTypePDF:
		return "pdf"
	case FileTypeText:
		return "text"
	case FileTypeMarkdown:
		return "markdown"
	case FileTypeRichText:
		return "rich-text"
	}
	return "unknown"
}

// Document is one logical unit of knowledge extracted from a source file.
type Document struct {
	ID        string
	Title     string
	Content   string
	Path      string
	Type      FileType
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentID derives a stable document id from the source path, so
// re-indexing the same file replaces its rows instead of duplicating them.
func DocumentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Chunk is a contiguous slice of a document's content, the unit of retrieval.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
}

// ChunkID derives the composite row identifier for this chunk.
func (c Chunk) ChunkID() string {
	return fmt.Sprintf("%s_%d", c.DocumentID, c.Index)
}

// ChunkMetadata is the per-row metadata persisted alongside each vector.
type ChunkMetadata struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	ChunkIndex int    `json:"chunk_index"`
	DocumentID string `json:"document_id"`
	CreatedAt  string `json:"created_at"`
	// Fallback marks vectors produced by the degraded local pseudo-embedding
	// rather than the remote model.
	Fallback bool `json:"fallback,omitempty"`
}

// SearchResult is one row of a collection search, ordered by ascending
// distance (smaller is more similar).
type SearchResult struct {
	Content  string
	Metadata ChunkMetadata
	Distance float64
}

// Similarity converts the result's distance into a similarity estimate.
func (r SearchResult) Similarity() float64 {
	return 1.0 - r.Distance
}

// Source is one attribution entry on an answer.
type Source struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
	Preview    string  `json:"preview"`
}

// Answer is the transient result of one question-answering request.
type Answer struct {
	Query      string        `json:"query"`
	Text       string        `json:"answer"`
	Sources    []Source      `json:"sources"`
	Context    string        `json:"context,omitempty"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Exchange is one prior conversation turn supplied to the orchestrator.
type Exchange struct {
	Role    string // "user" or "assistant"
	Content string
}

// IndexStatus is the lifecycle state of the persisted collection.
type IndexStatus string

const (
	IndexNotCreated IndexStatus = "not_created"
	IndexCreating   IndexStatus = "creating"
	IndexCreated    IndexStatus = "created"
	IndexError      IndexStatus = "error"
)

// StreamEventType tags events emitted by the streaming answer path.
type StreamEventType string

const (
	EventSources  StreamEventType = "sources"
	EventContent  StreamEventType = "content"
	EventComplete StreamEventType = "complete"
	EventError    StreamEventType = "error"
)

// StreamEvent is one element of a streaming answer.
type StreamEvent struct {
	Type    StreamEventType
	Content string   // fragment text for EventContent
	Answer  *Answer  // final result for EventComplete
	Sources []Source // attributions for EventSources
	Err     error    // set for EventError
}
