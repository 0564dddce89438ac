package extractor

import (
	"bytes"
	"io"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor handles Markdown files using goldmark. Headings are
// re-emitted with their marker so the structure detector picks them up
// from the flat text.
type MarkdownExtractor struct{}

func (p *MarkdownExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		var block string
		switch node := n.(type) {
		case *ast.Heading:
			block = strings.Repeat("#", node.Level) + " " + string(node.Text(src))
		default:
			block = extractBlockText(n, src)
		}
		if block == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(block)
	}

	return &document.RawDocument{
		Kind:       document.KindMarkdown,
		SourceName: filename,
		Text:       CleanText(buf.String()),
	}, nil
}

// extractBlockText gets the text content of a goldmark AST node.
func extractBlockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	// Also handle inline children.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractBlockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
