package parser

import (
	"io"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// TextParser handles plain text files. Each paragraph becomes an untitled
// node. Text exported from paged documents separates pages with form
// feeds; paragraphs of such files carry their 1-based page number.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	src := strings.ReplaceAll(string(data), "\r\n", "\n")

	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}
	paged := strings.Contains(src, "\f")
	for i, page := range strings.Split(src, "\f") {
		for _, para := range paragraphs(page) {
			node := &doctree.DocNode{Text: para}
			if paged {
				node.Page = i + 1
			}
			tree.Children = append(tree.Children, node)
		}
	}
	return tree, nil
}

// paragraphs splits on blank or whitespace-only lines and drops trailing
// spaces from each kept line.
func paragraphs(s string) []string {
	var out, cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}
