// Package chunker splits extracted document text into overlapping windows.
package chunker

import (
	"fmt"
	"strings"

	"localkb/internal/domain"
)

const (
	// DefaultWindow is the default chunk size in runes.
	DefaultWindow = 1000
	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 200
)

// Splitter cuts text into windows of at most Window runes with Overlap runes
// shared between consecutive chunks. Splitting is deterministic and prefers
// paragraph, then line, then word boundaries before a hard cut.
type Splitter struct {
	window  int
	overlap int
}

// NewSplitter validates the parameters and returns a splitter.
func NewSplitter(window, overlap int) (*Splitter, error) {
	if window <= 0 {
		return nil, domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("chunk window must be positive, got %d", window), nil)
	}
	if overlap < 0 || overlap >= window {
		return nil, domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("chunk overlap must be in [0, window), got %d with window %d", overlap, window),
			map[string]any{"window": window, "overlap": overlap})
	}
	return &Splitter{window: window, overlap: overlap}, nil
}

// MustDefault returns a splitter with the default window and overlap.
func MustDefault() *Splitter {
	s, err := NewSplitter(DefaultWindow, DefaultOverlap)
	if err != nil {
		panic(err)
	}
	return s
}

// Window returns the configured window size.
func (s *Splitter) Window() int { return s.window }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into ordered windows. Non-empty input yields at least one
// chunk; no chunk is ever empty and every chunk is at most Window runes.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.window {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.window
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}

		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	if len(chunks) == 0 {
		// Whitespace-only input still produces one chunk.
		end := s.window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = []string{string(runes[:end])}
	}
	return chunks
}

// Chunks splits a document's content into addressed chunks.
func (s *Splitter) Chunks(doc domain.Document) ([]domain.Chunk, error) {
	pieces := s.Split(doc.Content)
	if len(pieces) == 0 {
		return nil, domain.NewError(domain.CodeChunkFailed,
			"no chunks produced for document "+doc.Title,
			map[string]any{"document_id": doc.ID, "path": doc.Path})
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{DocumentID: doc.ID, Index: i, Text: p}
	}
	return chunks, nil
}

// breakPoint moves a window end backwards to the best boundary: paragraph,
// line, word, then the hard limit. The boundary must keep the chunk at least
// half the window so pathological inputs cannot degenerate to tiny chunks.
func (s *Splitter) breakPoint(runes []rune, start, limit int) int {
	min := start + s.window/2

	if p := lastBoundary(runes, min, limit, "\n\n"); p > 0 {
		return p
	}
	if p := lastBoundary(runes, min, limit, "\n"); p > 0 {
		return p
	}
	for i := limit - 1; i > min; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return limit
}

// lastBoundary finds the end of the last occurrence of sep inside
// runes[min:limit], or 0 when absent.
func lastBoundary(runes []rune, min, limit int, sep string) int {
	sepRunes := []rune(sep)
	for i := limit - len(sepRunes); i > min; i-- {
		match := true
		for j, r := range sepRunes {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i + len(sepRunes)
		}
	}
	return 0
}
