// Package doctree holds the structural models the notebook engine works
// with: container documents (include-references plus insertion markers),
// leaf documents, and the section trees produced when importing external
// course material.
package doctree

// DocTree is the root of an imported external document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Source   string     // Original filename
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in an imported document.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Walk visits every node depth-first with its heading depth (1 for
// top-level sections). Returning false stops descent into that node.
func (t *DocTree) Walk(fn func(n *DocNode, depth int) bool) {
	for _, c := range t.Children {
		walk(c, 1, fn)
	}
}

func walk(n *DocNode, depth int, fn func(*DocNode, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Sections counts titled nodes.
func (t *DocTree) Sections() int {
	count := 0
	t.Walk(func(n *DocNode, _ int) bool {
		if n.Title != "" {
			count++
		}
		return true
	})
	return count
}
