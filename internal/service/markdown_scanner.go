package service

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// ScanImageRefs lists the image references of a markdown document in order of
// appearance: markdown image destinations and the src of <img> tags found in
// raw HTML. Duplicates are dropped.
func ScanImageRefs(markdown string) []string {
	source := []byte(markdown)
	root := markdownParser.Parse(text.NewReader(source))

	var refs []string
	var html strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			refs = append(refs, string(node.Destination))
		case *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				html.Write(seg.Value(source))
			}
			if node.HasClosure() {
				html.Write(node.ClosureLine.Value(source))
			}
			html.WriteByte('\n')
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				html.Write(seg.Value(source))
			}
			html.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	if html.Len() > 0 {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.String()))
		if err == nil {
			doc.Find("img").Each(func(_ int, s *goquery.Selection) {
				if src, ok := s.Attr("src"); ok && src != "" {
					refs = append(refs, src)
				}
			})
		}
	}

	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
