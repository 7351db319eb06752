package doctree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

var (
	// ErrMarkerMissing means the container has no insertion marker for the
	// requested scope.
	ErrMarkerMissing = errors.New("insertion marker missing")
	// ErrMarkerAmbiguous means the marker occurs more than once, so the
	// insertion point is not well defined.
	ErrMarkerAmbiguous = errors.New("insertion marker ambiguous")
)

// IncludeCommands are the commands recognized as include-references.
var IncludeCommands = []string{"subfile", "nestedsubfile", "input", "include"}

// Node is one element of a container document.
type Node interface {
	Raw() string
}

// TextNode is verbatim text that carries no structure the engine cares about.
type TextNode struct {
	Text string
}

func (n *TextNode) Raw() string { return n.Text }

// RefNode is a line holding an include-reference to a leaf.
type RefNode struct {
	Command string // subfile, nestedsubfile, input, include
	Target  string // argument as written, e.g. ../lec06/lec06
	Line    string
}

func (n *RefNode) Raw() string { return n.Line }

// MarkerNode is the extension point of one insertion scope.
type MarkerNode struct {
	Token string
	Line  string
}

func (n *MarkerNode) Raw() string { return n.Line }

// Container is a container document as an ordered list of typed nodes.
// Serializing an unmodified container reproduces its input byte for byte.
type Container struct {
	Nodes []Node
}

// ParseContainer splits text into lines and classifies each as a marker
// (one of the given tokens), an include-reference, or plain text.
// Consecutive text lines are merged. Includes of macro parameters (#1)
// inside command definitions are text.
func ParseContainer(text string, markers ...string) *Container {
	c := &Container{}
	var pending strings.Builder

	flush := func() {
		if pending.Len() > 0 {
			c.Nodes = append(c.Nodes, &TextNode{Text: pending.String()})
			pending.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if tok, ok := matchMarker(line, markers); ok {
			flush()
			c.Nodes = append(c.Nodes, &MarkerNode{Token: tok, Line: line})
			continue
		}
		if refs := texscan.Commands(line, 1, IncludeCommands...); len(refs) > 0 && !strings.Contains(refs[0].Args[0], "#") {
			flush()
			c.Nodes = append(c.Nodes, &RefNode{
				Command: refs[0].Name,
				Target:  strings.TrimSpace(refs[0].Args[0]),
				Line:    line,
			})
			continue
		}
		pending.WriteString(line)
	}
	flush()
	return c
}

func matchMarker(line string, markers []string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, m := range markers {
		if trimmed == m || strings.HasPrefix(trimmed, m+" ") {
			return m, true
		}
	}
	return "", false
}

// String serializes the container back to text.
func (c *Container) String() string {
	var sb strings.Builder
	for _, n := range c.Nodes {
		sb.WriteString(n.Raw())
	}
	return sb.String()
}

// MarkerCount reports how many extension points exist for token.
func (c *Container) MarkerCount(token string) int {
	count := 0
	for _, n := range c.Nodes {
		if m, ok := n.(*MarkerNode); ok && m.Token == token {
			count++
		}
	}
	return count
}

// Insert splices entry immediately before the marker for token. The marker
// node itself is kept so later insertions land after this one.
func (c *Container) Insert(token, entry string) error {
	idx := -1
	for i, n := range c.Nodes {
		m, ok := n.(*MarkerNode)
		if !ok || m.Token != token {
			continue
		}
		if idx >= 0 {
			return fmt.Errorf("%q: %w", token, ErrMarkerAmbiguous)
		}
		idx = i
	}
	if idx < 0 {
		return fmt.Errorf("%q: %w", token, ErrMarkerMissing)
	}

	if entry != "" && !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	added := ParseContainer(entry).Nodes

	nodes := make([]Node, 0, len(c.Nodes)+len(added))
	nodes = append(nodes, c.Nodes[:idx]...)
	nodes = append(nodes, added...)
	nodes = append(nodes, c.Nodes[idx:]...)
	c.Nodes = nodes
	return nil
}

// References lists include targets in document order.
func (c *Container) References() []string {
	var out []string
	for _, n := range c.Nodes {
		if r, ok := n.(*RefNode); ok {
			out = append(out, r.Target)
		}
	}
	return out
}

// Includes reports whether any include-reference points at target. A
// trailing .tex extension is ignored on both sides.
func (c *Container) Includes(target string) bool {
	want := strings.TrimSuffix(target, ".tex")
	for _, ref := range c.References() {
		if strings.TrimSuffix(ref, ".tex") == want {
			return true
		}
	}
	return false
}
