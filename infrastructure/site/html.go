package site

import (
	"bytes"
	"html"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// htmlRenderer turns exported markdown pages into standalone HTML pages
// whose relative links point at the HTML siblings.
type htmlRenderer struct {
	md goldmark.Markdown
}

func newHTMLRenderer() *htmlRenderer {
	return &htmlRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Pages embed <pre> blocks and &nbsp; separators.
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

func (h *htmlRenderer) render(name string, source []byte) ([]byte, error) {
	doc := h.md.Parser().Parse(text.NewReader(source))
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if l, ok := n.(*ast.Link); ok && entering {
			l.Destination = []byte(htmlTarget(string(l.Destination)))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	buf.WriteString(html.EscapeString(pageTitle(name)))
	buf.WriteString("</title>\n</head>\n<body>\n")
	if err := h.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, err
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// htmlTarget rewrites a relative link to a markdown page so that it points
// at the rendered page. Absolute URLs are left alone.
func htmlTarget(dest string) string {
	if strings.Contains(dest, "://") || !strings.HasSuffix(dest, ".md") {
		return dest
	}
	return strings.TrimSuffix(dest, ".md") + ".html"
}

// pageTitle derives a title from the page path, such as
// "tasks/scene/golds" for "tasks/scene/golds.md".
func pageTitle(name string) string {
	name = strings.TrimSuffix(name, ".md")
	if path.Base(name) == "index" {
		name = path.Dir(name)
	}
	if name == "." {
		return "CLAMS Dashboard"
	}
	return "CLAMS Dashboard: " + name
}
