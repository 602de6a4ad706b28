package reader

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"localkb/internal/domain"
)

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "cannot open pdf "+path, err)
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return "", domain.NewError(domain.CodeEmptyContent,
			"pdf has no pages: "+path, map[string]any{"path": path})
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", domain.NewError(domain.CodeEmptyContent,
			"no text extracted from pdf: "+path, map[string]any{"path": path, "pages": r.NumPage()})
	}
	return out, nil
}
