// Package reader extracts plain text from supported document formats.
// Its only side effects are file reads.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"localkb/internal/domain"
)

// Reader performs format-specific text extraction.
type Reader struct{}

// New returns a document reader.
func New() *Reader {
	return &Reader{}
}

// Read extracts plain text from the file at path, dispatching on its
// format tag.
func (r *Reader) Read(path string) (string, error) {
	ft, err := domain.ParseFileType(path)
	if err != nil {
		return "", err
	}
	return r.extract(path, ft)
}

func (r *Reader) extract(path string, ft domain.FileType) (string, error) {
	switch ft {
	case domain.FileTypePDF:
		return extractPDF(path)
	case domain.FileTypeText:
		return extractText(path)
	case domain.FileTypeMarkdown:
		return extractMarkdown(path)
	case domain.FileTypeRichText:
		return extractDocx(path)
	}
	return "", domain.NewError(domain.CodeUnsupportedFormat,
		fmt.Sprintf("unsupported file type: %v", ft), map[string]any{"path": path})
}

// ReadDocument extracts the file and assembles a Document. The id is derived
// from the path so re-indexing the same file updates rather than duplicates.
func (r *Reader) ReadDocument(path string) (domain.Document, error) {
	ft, err := domain.ParseFileType(path)
	if err != nil {
		return domain.Document{}, err
	}

	content, err := r.extract(path, ft)
	if err != nil {
		return domain.Document{}, err
	}
	if strings.TrimSpace(content) == "" {
		return domain.Document{}, domain.NewError(domain.CodeEmptyContent,
			"no text content extracted from "+path, map[string]any{"path": path})
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.CodeCorruptFile, "cannot stat "+path, err)
	}

	now := time.Now()
	return domain.Document{
		ID:        domain.DocumentID(path),
		Title:     filepath.Base(path),
		Content:   content,
		Path:      path,
		Type:      ft,
		Size:      info.Size(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
