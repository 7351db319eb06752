package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// Render writes tree as a single markdown document: the title, a table of
// contents over the titled top-level sections, a rule, then every section
// with its heading one level deeper than its parent.
func Render(tree *doctree.DocTree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", tree.Title)

	var toc []string
	for _, n := range tree.Children {
		if n.Title == "" {
			continue
		}
		entry := fmt.Sprintf("- [%s](#%s)", n.Title, Anchor(n.Title))
		if n.Page > 0 && len(n.Children) > 0 {
			entry += fmt.Sprintf(" (p. %d)", n.Page)
		}
		toc = append(toc, entry)
	}
	if len(toc) > 0 {
		sb.WriteString("\n## Table of Contents\n\n")
		sb.WriteString(strings.Join(toc, "\n"))
		sb.WriteString("\n\n---\n")
	}

	tree.Walk(func(n *doctree.DocNode, depth int) bool {
		if n.Title != "" {
			fmt.Fprintf(&sb, "\n%s %s\n", strings.Repeat("#", min(depth+1, 6)), n.Title)
			if n.Page > 0 && len(n.Children) > 0 {
				fmt.Fprintf(&sb, "\n*Starting page: %d*\n", n.Page)
			}
		}
		if text := cleanText(n.Text); text != "" {
			sb.WriteString("\n" + text + "\n")
		}
		return true
	})
	return sb.String()
}

// Anchor is the fragment id markdown renderers derive from a heading:
// lower case, punctuation dropped, whitespace runs turned into dashes.
func Anchor(title string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
		default:
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte('-')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}
