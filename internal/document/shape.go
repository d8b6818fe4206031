package document

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Shape counts the Markdown constructs a translation is expected to keep.
type Shape struct {
	Headings  int
	ListItems int
	Links     int
	CodeSpans int
}

var md = goldmark.New()

// ShapeOf parses src as Markdown and counts its structural nodes.
func ShapeOf(src string) Shape {
	var s Shape
	root := md.Parser().Parse(text.NewReader([]byte(src)))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			s.Headings++
		case ast.KindListItem:
			s.ListItems++
		case ast.KindLink, ast.KindAutoLink:
			s.Links++
		case ast.KindCodeSpan:
			s.CodeSpans++
		}
		return ast.WalkContinue, nil
	})
	return s
}

// Diff lists the constructs whose counts differ between s and other.
func (s Shape) Diff(other Shape) []string {
	var out []string
	if s.Headings != other.Headings {
		out = append(out, "headings")
	}
	if s.ListItems != other.ListItems {
		out = append(out, "list items")
	}
	if s.Links != other.Links {
		out = append(out, "links")
	}
	if s.CodeSpans != other.CodeSpans {
		out = append(out, "code spans")
	}
	return out
}

// Add sums two shapes.
func (s Shape) Add(other Shape) Shape {
	return Shape{
		Headings:  s.Headings + other.Headings,
		ListItems: s.ListItems + other.ListItems,
		Links:     s.Links + other.Links,
		CodeSpans: s.CodeSpans + other.CodeSpans,
	}
}
