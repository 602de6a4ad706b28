package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localkb/internal/domain"
)

func TestNewSplitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		window  int
		overlap int
		wantErr bool
	}{
		{"valid", 1000, 200, false},
		{"zero overlap", 100, 0, false},
		{"zero window", 0, 0, true},
		{"negative window", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals window", 100, 100, true},
		{"overlap exceeds window", 100, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.window, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				var derr *domain.Error
				require.True(t, errors.As(err, &derr))
				assert.Equal(t, domain.CodeInvalidParam, derr.Code)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := MustDefault()
	chunks := s.Split("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	s := MustDefault()
	assert.Nil(t, s.Split(""))
}

func TestSplitDeterministic(t *testing.T) {
	s, err := NewSplitter(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	first := s.Split(text)
	second := s.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitChunkSizeBound(t *testing.T) {
	s, err := NewSplitter(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 30)
	for i, chunk := range s.Split(text) {
		assert.LessOrEqual(t, len([]rune(chunk)), 50, "chunk %d exceeds window", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk), "chunk %d is blank", i)
	}
}

func TestSplitCoversAllContent(t *testing.T) {
	s, err := NewSplitter(40, 8)
	require.NoError(t, err)

	// Distinct words spread well past several windows; every one must land
	// in some chunk.
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliet", "kilo", "lima", "mike", "november",
		"oscar", "papa", "quebec", "romeo", "sierra", "tango"}
	text := strings.Join(words, " ")

	joined := strings.Join(s.Split(text), " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s, err := NewSplitter(60, 10)
	require.NoError(t, err)

	para1 := strings.Repeat("a", 45)
	para2 := strings.Repeat("b", 45)
	chunks := s.Split(para1 + "\n\n" + para2)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"),
		"first chunk should end on the paragraph break, got %q", chunks[0])
}

func TestSplitWordBoundaryFallback(t *testing.T) {
	s, err := NewSplitter(30, 5)
	require.NoError(t, err)

	chunks := s.Split("one two three four five six seven eight nine ten eleven twelve")
	for _, chunk := range chunks[:len(chunks)-1] {
		last := []rune(chunk)[len([]rune(chunk))-1]
		assert.Equal(t, ' ', last, "mid chunks should break after a space, got %q", chunk)
	}
}

func TestSplitHardCutWithoutBoundaries(t *testing.T) {
	s, err := NewSplitter(20, 4)
	require.NoError(t, err)

	chunks := s.Split(strings.Repeat("x", 100))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 20)
	}
	// Consecutive chunks share the configured overlap.
	assert.Equal(t, 20, len([]rune(chunks[0])))
}

func TestSplitWhitespaceOnlyStillYieldsChunk(t *testing.T) {
	s, err := NewSplitter(10, 2)
	require.NoError(t, err)

	chunks := s.Split(strings.Repeat(" ", 25))
	require.Len(t, chunks, 1)
}

func TestSplitMultibyteRunes(t *testing.T) {
	s, err := NewSplitter(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("日本語テキスト ", 10)
	for _, chunk := range s.Split(text) {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
	}
}

func TestChunksAssignsSequentialIDs(t *testing.T) {
	s, err := NewSplitter(30, 5)
	require.NoError(t, err)

	doc := domain.Document{
		ID:      "doc1",
		Title:   "notes.txt",
		Content: strings.Repeat("some sentence here. ", 10),
	}
	chunks, err := s.Chunks(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.Equal(t, "doc1", ch.DocumentID)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, domain.Chunk{DocumentID: "doc1", Index: i, Text: ch.Text}.ChunkID(), ch.ChunkID())
	}
	assert.Equal(t, "doc1_0", chunks[0].ChunkID())
}

func TestChunksEmptyDocumentFails(t *testing.T) {
	s := MustDefault()
	_, err := s.Chunks(domain.Document{ID: "doc1", Title: "empty.txt"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeChunkFailed, domain.CodeOf(err))
}
