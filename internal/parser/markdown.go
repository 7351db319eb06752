package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}

	o := newOutline()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			o.heading(h.Level, strings.TrimSpace(inlineText(h, src)), 0)
			continue
		}
		o.paragraph(blockText(n, src))
	}
	return o.finish(tree), nil
}

// blockText gets the raw lines of a leaf block such as a paragraph or a
// code block. Container blocks (lists, quotes) join the text of their
// children line by line.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if lines := n.Lines(); n.Type() == ast.TypeBlock && lines.Len() > 0 {
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t := blockText(c, src)
		if c.Type() == ast.TypeInline {
			t = strings.TrimSpace(inlineText(c, src))
		}
		if t == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(t)
	}
	return strings.TrimSpace(buf.String())
}

func inlineText(n ast.Node, src []byte) string {
	if t, ok := n.(*ast.Text); ok {
		return string(t.Segment.Value(src))
	}
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.WriteString(inlineText(c, src))
	}
	return buf.String()
}
