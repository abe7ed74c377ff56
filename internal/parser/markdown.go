package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. YAML frontmatter is
// stripped before parsing; headings become their own paragraphs so section
// titles stay attached to nearby content.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}
	src = stripFrontmatter(src)

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	title := titleFromFilename(filename)
	var paragraphs []string

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			h := string(node.Text(src))
			if h == "" {
				continue
			}
			// First h1 becomes the document title.
			if node.Level == 1 && title == titleFromFilename(filename) {
				title = h
			}
			paragraphs = append(paragraphs, h)
		default:
			if t := blockText(n, src); t != "" {
				paragraphs = append(paragraphs, t)
			}
		}
	}

	return Document{
		Title: title,
		Text:  joinParagraphs(paragraphs),
	}, nil
}

// stripFrontmatter removes a leading YAML block delimited by "---" lines.
func stripFrontmatter(src []byte) []byte {
	s := string(src)
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return src
	}
	rest := s[strings.IndexByte(s, '\n')+1:]
	for _, delim := range []string{"\n---\n", "\n---\r\n"} {
		if idx := strings.Index(rest, delim); idx >= 0 {
			return []byte(rest[idx+len(delim):])
		}
	}
	if strings.HasSuffix(rest, "\n---") {
		return nil
	}
	return src
}

// blockText gets the text content of a goldmark AST block node. Leaf
// blocks without inline children (code fences) are read from their raw
// source lines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if !n.HasChildren() {
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(src))
			}
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if s := blockText(c, src); s != "" {
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(s)
		}
	}
	return strings.TrimSpace(buf.String())
}
