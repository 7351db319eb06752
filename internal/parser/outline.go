package parser

import (
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// outline builds a DocTree from a flat stream of headings and paragraphs.
// A heading nests under the nearest earlier heading of a lower level;
// paragraphs attach to the most recent heading.
type outline struct {
	root  *doctree.DocNode
	stack []outlineEntry
	text  strings.Builder
}

type outlineEntry struct {
	node  *doctree.DocNode
	level int
}

func newOutline() *outline {
	root := &doctree.DocNode{}
	return &outline{root: root, stack: []outlineEntry{{node: root}}}
}

// heading opens a new section at level (1 is outermost).
func (o *outline) heading(level int, title string, page int) {
	o.flush()
	node := &doctree.DocNode{Title: title, Page: page}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineEntry{node: node, level: level})
}

// paragraph appends a block of text to the current section.
func (o *outline) paragraph(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(t)
}

func (o *outline) flush() {
	t := o.text.String()
	o.text.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// finish closes the outline into tree. Text before the first heading
// becomes an untitled leading node.
func (o *outline) finish(tree *doctree.DocTree) *doctree.DocTree {
	o.flush()
	if o.root.Text != "" {
		tree.Children = append(tree.Children, &doctree.DocNode{Text: o.root.Text})
	}
	tree.Children = append(tree.Children, o.root.Children...)
	return tree
}
