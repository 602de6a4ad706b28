package reader

import (
	"os"
	"strings"

	docx "github.com/fumiama/go-docx"

	"localkb/internal/domain"
)

// extractDocx concatenates paragraph and table-cell text in document order.
func extractDocx(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "cannot open docx "+path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "cannot stat docx "+path, err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "cannot parse docx "+path, err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			text := strings.TrimSpace(block.String())
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		case *docx.Table:
			text := strings.TrimSpace(block.String())
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", domain.NewError(domain.CodeEmptyContent,
			"no text extracted from docx: "+path, map[string]any{"path": path})
	}
	return out, nil
}
