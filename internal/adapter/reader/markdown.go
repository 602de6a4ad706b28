package reader

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"localkb/internal/domain"
)

// markdownStrategies is the ordered extraction chain: structure-aware parse,
// markup stripping, raw plain text. The first success short-circuits.
var markdownStrategies = []func(src []byte) (string, error){
	markdownAST,
	markdownStrip,
	func(src []byte) (string, error) { return string(src), nil },
}

func extractMarkdown(path string) (string, error) {
	src, err := readRawText(path)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, strategy := range markdownStrategies {
		out, err := strategy(src)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(out) != "" {
			return out, nil
		}
	}
	if lastErr != nil {
		return "", domain.WrapError(domain.CodeCorruptFile, "markdown extraction failed for "+path, lastErr)
	}
	return "", domain.NewError(domain.CodeEmptyContent,
		"no text content extracted from "+path, map[string]any{"path": path})
}

// readRawText reuses the plain-text encoding fallback to obtain valid UTF-8.
func readRawText(path string) ([]byte, error) {
	s, err := extractText(path)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// markdownAST walks the goldmark AST and emits text content with headings,
// paragraphs, and list items normalized to plain lines.
func markdownAST(src []byte) (string, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(src))

	var sb strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.CodeBlock:
			writeCodeLines(&sb, node.BaseBlock, src)
		case *ast.FencedCodeBlock:
			writeCodeLines(&sb, node.BaseBlock, src)
		case *ast.AutoLink:
			sb.Write(node.URL(src))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeCodeLines(sb *strings.Builder, block ast.BaseBlock, src []byte) {
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
}

var markdownPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("(?s)```.*?```"), ""},         // fenced code
	{regexp.MustCompile("`([^`]*)`"), "$1"},           // inline code
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},        // headings
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), ""},  // images
	{regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`), "$1"}, // links
	{regexp.MustCompile(`(\*\*|__)(.*?)(\*\*|__)`), "$2"}, // bold
	{regexp.MustCompile(`(\*|_)(.*?)(\*|_)`), "$2"},   // emphasis
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},      // bullet markers
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+`), ""},      // numbered list markers
	{regexp.MustCompile(`(?m)^>\s?`), ""},             // blockquote markers
	{regexp.MustCompile(`(?m)^---+\s*$`), ""},         // horizontal rules
}

// markdownStrip removes markup with pattern substitution, the middle rung of
// the fallback chain.
func markdownStrip(src []byte) (string, error) {
	out := string(src)
	for _, p := range markdownPatterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out, nil
}
