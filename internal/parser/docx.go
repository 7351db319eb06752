package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles open sections and the
// Title style names the document.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}

	o := newOutline()
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		style := docxStyle(para)
		if strings.EqualFold(style, "Title") {
			tree.Title = text
			continue
		}
		if level := docxHeadingLevel(style); level > 0 {
			o.heading(level, text, 0)
			continue
		}
		o.paragraph(text)
	}
	return o.finish(tree), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxHeadingLevel accepts both the style id ("Heading2") and the display
// name ("heading 2").
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if len(s) == len("heading")+1 && strings.HasPrefix(s, "heading") {
		if d := s[len(s)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
